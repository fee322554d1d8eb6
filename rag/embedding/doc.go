// Copyright 2025-2026 Tenaga Authors. All rights reserved.
// Use of this source code is governed by the project license.

// Package embedding provides the two text-to-vector providers used by the
// retrieval engine: a corpus-fitted lexical TF-IDF vectorizer and an optional
// pretrained sentence-embedding model served over HTTP. Both produce vectors
// comparable via cosine similarity.
package embedding
