// Copyright 2025 The Usernet Authors
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

package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name    string
		data    []byte
		initial uint16
		want    uint16
	}{
		{
			name: "Empty",
			want: 0,
		},
		{
			name: "OddLength",
			data: []byte{1, 9, 0, 5, 4},
			want: 1294,
		},
		{
			name: "EvenLength",
			data: []byte{1, 9, 0, 5},
			want: 270,
		},
		{
			name:    "WithInitial",
			data:    []byte{1, 9, 0, 5},
			initial: 2,
			want:    272,
		},
		{
			name: "CarryFolds",
			data: []byte{0xff, 0xff, 0x00, 0x02},
			want: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Checksum(tc.data, tc.initial))
		})
	}
}

func TestChecksumer(t *testing.T) {
	testCases := []struct {
		name string
		data [][]byte
		want uint16
	}{
		{
			name: "Empty",
			want: 0,
		},
		{
			name: "OneOddView",
			data: [][]byte{
				{1, 9, 0, 5, 4},
			},
			want: 1294,
		},
		{
			name: "TwoOddViews",
			data: [][]byte{
				{1, 9, 0, 5, 4},
				{4, 3, 7, 1, 2, 123},
			},
			want: 33819,
		},
		{
			name: "TwoEvenViews",
			data: [][]byte{
				{98, 1, 9, 0},
				{9, 0, 5, 4},
			},
			want: 30981,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var c Checksumer
			for _, b := range tc.data {
				c.Add(b)
			}
			assert.Equal(t, tc.want, c.Checksum())
		})
	}
}

func TestCombine(t *testing.T) {
	assert.Equal(t, uint16(3), Combine(1, 2))
	// The carry out of the 16-bit sum is folded back in.
	assert.Equal(t, uint16(2), Combine(0xffff, 3))
}

func TestPut(t *testing.T) {
	b := make([]byte, Size)
	Put(b, 0xdead)
	require.Equal(t, []byte{0xde, 0xad}, b)
}
