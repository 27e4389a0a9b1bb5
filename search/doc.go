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

// Package search retrieves indexed passages without asking a model to
// answer anything.
//
// The Searcher ranks nodes by two signals:
//   - Semantic similarity between the query and node embeddings
//   - Verbatim keyword matching with stop-word filtering
//
// A passage containing every significant query word gets a fixed boost on
// top of its similarity, so exact phrasing in a policy booklet outranks a
// merely related paragraph.
package search
