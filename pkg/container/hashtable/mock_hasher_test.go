// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

import (
	"reflect"

	"github.com/golang/mock/gomock"
)

// MockHasher is a mock of the Hasher interface.
type MockHasher[K any] struct {
	ctrl     *gomock.Controller
	recorder *MockHasherMockRecorder[K]
}

// MockHasherMockRecorder is the mock recorder for MockHasher.
type MockHasherMockRecorder[K any] struct {
	mock *MockHasher[K]
}

// NewMockHasher creates a new mock instance.
func NewMockHasher[K any](ctrl *gomock.Controller) *MockHasher[K] {
	mock := &MockHasher[K]{ctrl: ctrl}
	mock.recorder = &MockHasherMockRecorder[K]{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockHasher[K]) EXPECT() *MockHasherMockRecorder[K] {
	return m.recorder
}

// Equal mocks base method.
func (m *MockHasher[K]) Equal(arg0, arg1 K) bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Equal", arg0, arg1)
	ret0, _ := ret[0].(bool)
	return ret0
}

// Equal indicates an expected call of Equal.
func (mr *MockHasherMockRecorder[K]) Equal(arg0, arg1 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Equal", reflect.TypeOf((*MockHasher[K])(nil).Equal), arg0, arg1)
}

// Hash mocks base method.
func (m *MockHasher[K]) Hash(arg0 K) uint64 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Hash", arg0)
	ret0, _ := ret[0].(uint64)
	return ret0
}

// Hash indicates an expected call of Hash.
func (mr *MockHasherMockRecorder[K]) Hash(arg0 interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Hash", reflect.TypeOf((*MockHasher[K])(nil).Hash), arg0)
}
