// Package rag fills fields that direct extraction left empty by asking
// targeted questions against a document's indexed chunks.
//
// Each missing field gets its own query, built from the company's prompt
// config when one exists. Answers are interpreted leniently: a JSON object
// carries provenance, null-like replies mean the value wasn't found, and
// anything else is taken as the value with the best source node as its
// snippet.
package rag
