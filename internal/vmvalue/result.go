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

import "fmt"

// ResultObj backs the Result(ref) variant used by RESULT_OK/RESULT_ERR/
// RESULT_IS_OK/RESULT_UNWRAP.
type ResultObj struct {
	Header
	ok      bool
	payload Value
}

// NewOkResult wraps v as an Ok result, retaining v.
func NewOkResult(a *Arena, v Value) *ResultObj {
	v.Retain()
	return &ResultObj{Header: initHeader(a, "Result"), ok: true, payload: v}
}

// NewErrResult wraps v as an Err result, retaining v.
func NewErrResult(a *Arena, v Value) *ResultObj {
	v.Retain()
	return &ResultObj{Header: initHeader(a, "Result"), ok: false, payload: v}
}

func (r *ResultObj) Retain()  { r.Header.Retain() }
func (r *ResultObj) Release() { r.Header.Release(func() { r.payload.Release() }) }

func (r *ResultObj) IsOk() bool { return r.ok }

// Unwrap returns the payload without adjusting its refcount.
func (r *ResultObj) Unwrap() Value { return r.payload }

func (r *ResultObj) String() string {
	tag := "Ok"
	if !r.ok {
		tag = "Err"
	}
	return fmt.Sprintf("%s(%s)", tag, r.payload.String())
}
