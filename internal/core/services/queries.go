// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package services

const (
	// QryOperationStats summarizes the aggregation table for the dashboard.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the aggregation table.
	// - `%d`: The look-back window in hours.
	//
	// A record counts as degraded when at least one sub-call was absorbed.
	QryOperationStats = "SELECT operation, mode, COUNT(*) AS total, COUNTIF(failed) AS failed, " +
		"COUNTIF(ARRAY_LENGTH(degraded) > 0) AS degraded, AVG(latency_ms) AS avg_ms " +
		"FROM `%s` WHERE create_date >= TIMESTAMP_SUB(CURRENT_TIMESTAMP(), INTERVAL %d HOUR) " +
		"GROUP BY operation, mode ORDER BY total DESC"
)
