// Copyright 2025 Poiesic Systems
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

package core

import (
	"fmt"
	"strings"
)

// Phase is a document's position in the processing lifecycle.
type Phase string

const (
	PhaseUploading  Phase = "uploading"
	PhaseParsing    Phase = "parsing"
	PhaseEmbedding  Phase = "embedding"
	PhaseExtraction Phase = "extraction"
	PhaseRAG        Phase = "rag"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// phaseOrder ranks the forward phases. Error is deliberately absent.
var phaseOrder = map[Phase]int{
	PhaseUploading:  0,
	PhaseParsing:    1,
	PhaseEmbedding:  2,
	PhaseExtraction: 3,
	PhaseRAG:        4,
	PhaseCompleted:  5,
}

// Phases lists every phase in lifecycle order, error last.
func Phases() []Phase {
	return []Phase{
		PhaseUploading,
		PhaseParsing,
		PhaseEmbedding,
		PhaseExtraction,
		PhaseRAG,
		PhaseCompleted,
		PhaseError,
	}
}

// ParsePhase converts a string to a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
	return p, nil
}

// IsValid reports whether p is a known phase.
func (p Phase) IsValid() bool {
	if p == PhaseError {
		return true
	}
	_, ok := phaseOrder[p]
	return ok
}

// IsTerminal reports whether no further transitions are possible from p.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseError
}

func (p Phase) String() string {
	return string(p)
}

// CanTransition reports whether a document may move from one phase to another.
//
// Forward moves follow uploading → parsing → embedding → extraction → rag →
// completed, one step at a time, except that extraction may go straight to
// completed when there is nothing to backfill. Any non-terminal phase may move
// to error. Nothing leaves a terminal phase, and self-transitions are rejected.
func CanTransition(from, to Phase) bool {
	if !from.IsValid() || !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to == PhaseError {
		return true
	}
	next := phaseOrder[from] + 1
	if phaseOrder[to] == next {
		return true
	}
	return from == PhaseExtraction && to == PhaseCompleted
}

// ValidateTransition returns ErrInvalidTransition unless CanTransition(from, to).
func ValidateTransition(from, to Phase) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
