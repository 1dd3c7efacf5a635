// Copyright 2021 The Oto Authors
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
	"encoding/binary"
	"math"
)

// Reader returns the mixed stream as little endian float32 bytes, the
// format output devices pull. Reads never fail and never end.
func (m *Mixer) Reader() *Reader {
	return &Reader{mixer: m}
}

type Reader struct {
	mixer *Mixer
	buf   []float32
}

func (r *Reader) Read(p []byte) (int, error) {
	frame := 4 * r.mixer.format.Channels
	n := len(p) / frame * frame / 4
	if n == 0 {
		return 0, nil
	}
	if cap(r.buf) < n {
		r.buf = make([]float32, n)
	}
	buf := r.buf[:n]
	r.mixer.ReadFloat32s(buf)
	for i, v := range buf {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return 4 * n, nil
}
