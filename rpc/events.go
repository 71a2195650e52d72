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
	"strconv"
	"strings"

	"github.com/lumenhq/lumen/internal/lumenerr"
	"github.com/lumenhq/lumen/primitives/felt"
)

// forkedTokenPrefix marks a continuation token that isn't ours to interpret:
// one minted by a forked chain's upstream provider and handed back to it
// verbatim on the next page.
const forkedTokenPrefix = "FK_"

// ContinuationToken positions a get_events page at the next event to resume
// from. There is no JSON-RPC-mandated wire format for this token, so the
// node is free to pick one; this is comma-separated lowercase hex
// (block,tx,event[,transaction_hash]), not an opaque blob, so a caller who
// inspects it (or a log line that prints it) can read the position directly.
type ContinuationToken struct {
	BlockNumber uint64
	TxIndex     uint64
	EventIndex  uint64
	// TxHash is set when resuming mid-transaction for an optimistic
	// (pre-confirmation) read; zero value means "not applicable".
	TxHash felt.Felt

	// Forked and ForkedValue hold a token minted by a forked chain's
	// upstream provider verbatim: it isn't ours to decode, only to pass
	// back on the next page.
	Forked      bool
	ForkedValue string
}

// Encode renders the token as the string get_events returns to the caller.
func (c ContinuationToken) Encode() string {
	if c.Forked {
		return forkedTokenPrefix + c.ForkedValue
	}
	s := strconv.FormatUint(c.BlockNumber, 16) + "," +
		strconv.FormatUint(c.TxIndex, 16) + "," +
		strconv.FormatUint(c.EventIndex, 16)
	if c.TxHash != (felt.Felt{}) {
		s += "," + c.TxHash.Hex()
	}
	return s
}

// ParseContinuationToken is the inverse of Encode; a caller-supplied token
// that fails to parse is an InvalidRequest, not Internal, since it crossed
// the RPC boundary as untrusted input.
func ParseContinuationToken(s string) (ContinuationToken, error) {
	if rest, ok := strings.CutPrefix(s, forkedTokenPrefix); ok {
		return ContinuationToken{Forked: true, ForkedValue: rest}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return ContinuationToken{}, lumenerr.New(lumenerr.InvalidRequest, "malformed continuation token")
	}

	blockN, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return ContinuationToken{}, lumenerr.New(lumenerr.InvalidRequest, "malformed continuation token")
	}
	txN, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return ContinuationToken{}, lumenerr.New(lumenerr.InvalidRequest, "malformed continuation token")
	}
	eventN, err := strconv.ParseUint(parts[2], 16, 64)
	if err != nil {
		return ContinuationToken{}, lumenerr.New(lumenerr.InvalidRequest, "malformed continuation token")
	}

	tok := ContinuationToken{BlockNumber: blockN, TxIndex: txN, EventIndex: eventN}
	if len(parts) == 4 && parts[3] != "" {
		h, err := felt.FromHex(parts[3])
		if err != nil {
			return ContinuationToken{}, lumenerr.New(lumenerr.InvalidRequest, "malformed continuation token")
		}
		tok.TxHash = h
	}
	return tok, nil
}
