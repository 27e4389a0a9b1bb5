// Package index stores document chunks with their embeddings and answers
// questions over them.
//
// Local is the in-process implementation. Chunks become nodes in a
// storage.NodeStore; a query embeds the prompt, retrieves the closest nodes
// of the requested documents and asks the completer to answer from them.
package index
