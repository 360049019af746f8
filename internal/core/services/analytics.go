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

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"google.golang.org/api/iterator"
)

// Recorder receives one record per top-level aggregator operation.
type Recorder interface {
	Record(ctx context.Context, rec *model.AggregationRecord) error
}

// StatsSource summarizes recorded operations for the dashboard.
type StatsSource interface {
	Stats(ctx context.Context, sinceHours int) ([]model.OperationStat, error)
}

// AnalyticsService writes aggregation records to BigQuery and reads the
// dashboard summary back.
type AnalyticsService struct {
	BigqueryClient *bigquery.Client // Client for interacting with Google BigQuery.
	DatasetName    string           // The BigQuery dataset, e.g. "broll_ds".
	Table          string           // The aggregation table, e.g. "aggregations".
}

// GetFQN returns the table name in the `project.dataset.table` form standard
// SQL expects.
func (s *AnalyticsService) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.Table).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

// Record streams a single row into the aggregation table.
func (s *AnalyticsService) Record(ctx context.Context, rec *model.AggregationRecord) error {
	inserter := s.BigqueryClient.Dataset(s.DatasetName).Table(s.Table).Inserter()
	if err := inserter.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert aggregation record %s: %w", rec.ID, err)
	}
	return nil
}

// Stats groups the records of the last sinceHours hours by operation and mode.
//
// Inputs:
//   - ctx: The context for the request.
//   - sinceHours: The look-back window; values below one are treated as 24.
//
// Outputs:
//   - []model.OperationStat: One row per operation and mode, busiest first.
//   - error: An error if the query or row scan fails.
func (s *AnalyticsService) Stats(ctx context.Context, sinceHours int) ([]model.OperationStat, error) {
	if sinceHours < 1 {
		sinceHours = 24
	}
	q := s.BigqueryClient.Query(fmt.Sprintf(QryOperationStats, s.GetFQN(), sinceHours))
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.OperationStat, 0)
	for {
		var row model.OperationStat
		err := itr.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
