// Copyright 2026 The Vega Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vmvalue

// String is an immutable, length-prefixed byte payload (spec §3). Identity
// is byte-for-byte equality; two Strings with the same bytes are not the
// same object unless one was produced by interning a constant.
type String struct {
	Header
	Data string
}

// NewString allocates a fresh String with refcount 1.
func NewString(a *Arena, data string) *String {
	return &String{Header: initHeader(a, "String"), Data: data}
}

func (s *String) Retain()  { s.Header.Retain() }
func (s *String) Release() { s.Header.Release(nil) }

func (s *String) Len() int { return len(s.Data) }

func (s *String) Contains(sub string) bool {
	return len(sub) == 0 || indexOf(s.Data, sub) >= 0
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
