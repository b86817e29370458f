// Package embedder turns query text into embedding vectors.
//
// Providers implement the Embedder interface: Jina AI (jina-clip-v2, the
// model the catalog embeddings were produced with), OpenAI, and a local
// hashed-token provider for offline development. HTTP providers retry
// transport failures with exponential backoff.
//
// # Query Cache
//
// QueryCache sits in front of an Embedder and is what the search engine
// calls. It keys entries by trimmed, lowercased query text, returns
// unit-normalized vectors, and evicts least-recently-used entries once its
// capacity is reached:
//
//	cache := embedder.NewQueryCache(2000)
//	if err := cache.Attach(ctx, emb); err != nil {
//	    return err // warm-up failed
//	}
//	vec, err := cache.GetEmbedding(ctx, "Matte Black Faucet")
//
// Cache hits never wait on the embedder. Misses are computed one at a time
// process-wide, so concurrent requests for the same new query trigger a
// single embedder call. Calling GetEmbedding before Attach returns ErrNotReady.
//
// # Provider Selection
//
// New picks the configured provider. With none configured it uses Jina when
// JINA_API_KEY is set, then OpenAI when OPENAI_API_KEY is set, and falls back
// to the local provider.
package embedder
