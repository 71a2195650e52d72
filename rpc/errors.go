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

package rpc

import (
	"errors"

	"github.com/lumenhq/lumen/internal/lumenerr"
)

// Domain error codes this node returns for each lumenerr.Kind.
// The official starknet_* spec assigns a distinct numeric code per method
// per failure mode (e.g. 20 CONTRACT_NOT_FOUND vs 24 BLOCK_NOT_FOUND); this
// node instead returns one stable code per Kind, independent of method,
// trading the wire-level precision of the full per-method table for a
// converter that can't drift out of sync with it as methods are added.
const (
	codeInvalidRequest     = 40
	codeNotFound           = 24
	codePreconditionFailed = 55
	codeUnsupported        = 61
	codeResourceExhausted  = 62
	codeTimeout            = 63
	codeExecution          = 41
)

var kindCode = map[lumenerr.Kind]int{
	lumenerr.InvalidRequest:     codeInvalidRequest,
	lumenerr.NotFound:           codeNotFound,
	lumenerr.PreconditionFailed: codePreconditionFailed,
	lumenerr.Unsupported:        codeUnsupported,
	lumenerr.ResourceExhausted:  codeResourceExhausted,
	lumenerr.Timeout:            codeTimeout,
	lumenerr.Execution:          codeExecution,
}

// ToJSONRPCError converts any error a method handler returns into a
// JSON-RPC error object, carrying a *lumenerr.Error's structured Data
// through to the response.
func ToJSONRPCError(err error) *Error {
	if err == nil {
		return nil
	}
	code, ok := kindCode[lumenerr.KindOf(err)]
	if !ok {
		code = InternalErrorCode
	}
	var le *lumenerr.Error
	var data any
	if errors.As(err, &le) {
		data = le.Data
	}
	return &Error{Code: code, Message: err.Error(), Data: data}
}
