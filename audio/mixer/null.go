// Copyright 2022 The Oto Authors
// Copyright 2025 Lundis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mixer

import (
	"context"
	"time"
)

// RunNull pulls from the mixer in real time without an output device, until
// ctx is done. It stands in for a device that could not be opened.
func (m *Mixer) RunNull(ctx context.Context) {
	buf32 := make([]float32, 4096/m.format.Channels*m.format.Channels)
	sleep := time.Duration(float64(time.Second) * float64(len(buf32)) / float64(m.format.Channels) / float64(m.format.SampleRate))
	t := time.NewTicker(sleep)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.ReadFloat32s(buf32)
		}
	}
}
