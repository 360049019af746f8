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
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jaycherian/broll-scout/internal/core/model"
)

// Speech output is 16-bit little-endian mono PCM at 24kHz.
const (
	SpeechSampleRate    = 24000
	SpeechChannels      = 1
	speechBitsPerSample = 16
	speechMIMEType      = "audio/L16"
)

// DecodeSpeech decodes the base64 payload returned by Backend.Synthesize.
func DecodeSpeech(payload string) (*model.AudioClip, error) {
	if payload == "" {
		return nil, errors.New("empty speech payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid speech payload: %w", err)
	}
	return &model.AudioClip{
		Data:       data,
		MIMEType:   speechMIMEType,
		SampleRate: SpeechSampleRate,
		Channels:   SpeechChannels,
	}, nil
}

// EncodeWAV wraps the PCM samples of clip in a RIFF/WAVE container.
func EncodeWAV(clip *model.AudioClip) []byte {
	channels := clip.Channels
	if channels <= 0 {
		channels = SpeechChannels
	}
	rate := clip.SampleRate
	if rate <= 0 {
		rate = SpeechSampleRate
	}
	blockAlign := channels * speechBitsPerSample / 8

	var buf bytes.Buffer
	buf.Grow(44 + len(clip.Data))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(clip.Data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(speechBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(clip.Data)))
	buf.Write(clip.Data)
	return buf.Bytes()
}
