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

package fabric

import "strings"

// Classification is the outcome of classifying an HTTP response (spec §4.7).
type Classification int

const (
	ClassNone Classification = iota
	ClassRetriable
	ClassFatal
)

// ClassifyHTTP implements spec §4.7's status classification: 200 -> None;
// 429/5xx/network-error(status 0)/body containing "overloaded" -> Retriable;
// anything else non-200 -> Fatal.
func ClassifyHTTP(status int, body string) Classification {
	if status == 200 {
		return ClassNone
	}
	if status == 429 || (status >= 500 && status < 600) || status == 0 {
		return ClassRetriable
	}
	if strings.Contains(strings.ToLower(body), "overloaded") {
		return ClassRetriable
	}
	return ClassFatal
}
