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

package external

import (
	"context"

	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/stages"
)

// BlockSource adapts a FeederClient into stages.Downloader[block.Number,
// stages.FetchedBlock], the shape the pipeline's Blocks stage consumes.
type BlockSource struct {
	feeder FeederClient
}

func NewBlockSource(feeder FeederClient) *BlockSource {
	return &BlockSource{feeder: feeder}
}

func (s *BlockSource) Download(ctx context.Context, n block.Number) (stages.FetchedBlock, error) {
	b, err := s.feeder.GetBlock(ctx, n)
	if err != nil {
		return stages.FetchedBlock{}, err
	}
	return stages.FetchedBlock{Block: b.Block, StateUpdate: b.StateUpdate, Classes: b.Classes, Receipts: b.Receipts}, nil
}

// DeclaredClassSource adapts a FeederClient into
// stages.Downloader[block.Number, []class.Hash]: the set of class hashes a
// block's state diff newly declares, which the Classes stage then fetches
// artifacts for.
type DeclaredClassSource struct {
	feeder FeederClient
}

func NewDeclaredClassSource(feeder FeederClient) *DeclaredClassSource {
	return &DeclaredClassSource{feeder: feeder}
}

func (s *DeclaredClassSource) Download(ctx context.Context, n block.Number) ([]class.Hash, error) {
	su, err := s.feeder.GetStateUpdate(ctx, n)
	if err != nil {
		return nil, err
	}
	if su == nil {
		return nil, nil
	}
	var hashes []class.Hash
	su.DeclaredClasses.Scan(func(hashFelt felt.Felt, _ class.CompiledHash) bool {
		hashes = append(hashes, class.Hash{Felt: hashFelt})
		return true
	})
	su.DeprecatedDeclaredClasses.Scan(func(hashFelt felt.Felt, _ struct{}) bool {
		hashes = append(hashes, class.Hash{Felt: hashFelt})
		return true
	})
	return hashes, nil
}

// ClassArtifactSource adapts a FeederClient into
// stages.Downloader[class.Hash, class.Class], fetching one class artifact
// by hash at a time.
type ClassArtifactSource struct {
	feeder FeederClient
}

func NewClassArtifactSource(feeder FeederClient) *ClassArtifactSource {
	return &ClassArtifactSource{feeder: feeder}
}

func (s *ClassArtifactSource) Download(ctx context.Context, h class.Hash) (class.Class, error) {
	return s.feeder.GetClassByHash(ctx, h)
}

// StateTrieSource adapts a FeederClient into
// stages.Downloader[block.Number, stages.StateUpdateForTrie], re-fetching a
// block's header and state diff for the StateTrie stage's root-recompute
// pass.
type StateTrieSource struct {
	feeder FeederClient
}

func NewStateTrieSource(feeder FeederClient) *StateTrieSource {
	return &StateTrieSource{feeder: feeder}
}

func (s *StateTrieSource) Download(ctx context.Context, n block.Number) (stages.StateUpdateForTrie, error) {
	b, err := s.feeder.GetBlock(ctx, n)
	if err != nil {
		return stages.StateUpdateForTrie{}, err
	}
	su, err := s.feeder.GetStateUpdate(ctx, n)
	if err != nil {
		return stages.StateUpdateForTrie{}, err
	}

	declared := map[class.Hash]class.CompiledHash{}
	if su != nil {
		su.DeclaredClasses.Scan(func(hashFelt felt.Felt, compiled class.CompiledHash) bool {
			declared[class.Hash{Felt: hashFelt}] = compiled
			return true
		})
	}
	return stages.StateUpdateForTrie{Header: b.Block.Header, StateUpdate: su, DeclaredClasses: declared}, nil
}
