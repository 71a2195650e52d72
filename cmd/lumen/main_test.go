// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseVerbosity(t *testing.T) {
	level, err := parseVerbosity("debug")
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, level)

	level, err = parseVerbosity("warn")
	require.NoError(t, err)
	require.Equal(t, zapcore.WarnLevel, level)

	_, err = parseVerbosity("not-a-level")
	require.Error(t, err)
}
