// Package rag implements retrieval-augmented answering.
//
// A question flows through a fixed sequence of stages:
//
//	Validate -> Embed -> Retrieve -> Generate -> Normalize
//
// Embedding and retrieval are hard dependencies: their failures abort the
// request. Generation never fails the request; when the chat provider is
// missing or errors, the answer degrades to a ranked listing of the
// retrieved evidence.
//
// Embedders and retrievers live outside this package (services/embedding,
// services/retrieval, repositories/postgres) and are consumed through the
// Embedder and Retriever interfaces.
package rag
