// Package embedder turns elements into vectors for semantic search.
//
// Four providers implement Embedder:
//
//   - jina and openai call an OpenAI-compatible /embeddings endpoint in
//     batches of up to MaxBatchSize texts
//   - ollama calls a local Ollama server, one text per request
//   - local hashes word and trigram features into 384 buckets and needs no
//     network, which makes it the default and the provider used in tests
//
// HTTP providers are throttled with a token bucket and retried with
// exponential backoff. Any provider can be wrapped in an LRU cache keyed by
// the SHA-256 of the text:
//
//	e, err := embedder.New(embedder.Config{Provider: "jina", APIKey: key, CacheSize: 10000})
//
// # Provider Selection
//
// ConfigFromEnv and DetectProvider choose a provider from the environment:
//
//  1. CONTEXTBRAIN_EMBEDDING_PROVIDER when set
//  2. jina when JINA_API_KEY is set
//  3. openai when OPENAI_API_KEY is set
//  4. ollama when OLLAMA_URL is set
//  5. local otherwise
//
// # Lazy Initialization
//
// Lazy defers construction to the first indexing or search call. Concurrent
// first callers share one construction through singleflight.
//
// # Embedding Text
//
// Text builds the string that is embedded for an element: kind and name, the
// file stem, the docstring, public method names for classes, the first
// parameters for functions, and up to five meaningful source lines. Imports
// are embedded as "import statement: {name}" plus their source line.
package embedder
