//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"strings"
	"syscall/js"

	"scirag/internal/adapter/chunker"
	"scirag/internal/adapter/embedding"
	"scirag/internal/adapter/jats"
	"scirag/internal/adapter/memstore"
	"scirag/internal/domain"
	"scirag/internal/usecase"
)

var (
	embedder  = embedding.NewHashEmbedder(embedding.DefaultHashDimension, 512)
	parser    = jats.NewParser()
	chk       = chunker.New()
	store     *memstore.MemoryStore
	retriever *usecase.RetrieveUseCase
)

func init() {
	reset()
}

func reset() {
	store = memstore.NewMemoryStore(embedder.Dimension(), embedder.ModelName())
	retriever = usecase.NewRetrieveUseCase(embedder, store, usecase.RetrieveOptions{})
}

func main() {
	c := make(chan struct{})

	js.Global().Set("sciragIndex", js.FuncOf(indexArticle))
	js.Global().Set("sciragQuery", js.FuncOf(queryStore))
	js.Global().Set("sciragClear", js.FuncOf(clearStore))
	js.Global().Set("sciragStats", js.FuncOf(getStats))

	<-c
}

func indexArticle(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: sciragIndex(filename, xml)")
	}

	filename := args[0].String()
	article, err := parser.Parse(strings.NewReader(args[1].String()), filename)
	if err != nil {
		return makeError(err.Error())
	}

	chunked := chk.Chunk(article, nil, false)
	if chunked == nil || len(chunked.Chunks) == 0 {
		return makeResult(map[string]interface{}{"success": true, "chunks": 0, "filename": filename})
	}

	ctx := context.Background()
	texts := make([]string, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return makeError("embedding failed: " + err.Error())
	}

	records := make([]domain.StoreRecord, len(chunked.Chunks))
	for i, c := range chunked.Chunks {
		records[i] = domain.RecordFromChunk(c, vectors[i])
	}
	if err := store.Upsert(ctx, records); err != nil {
		return makeError("indexing failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"success":  true,
		"chunks":   len(records),
		"title":    chunked.Metadata.Title,
		"filename": filename,
	})
}

func queryStore(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: sciragQuery(query, [topK])")
	}

	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	result, err := retriever.Retrieve(context.Background(), args[0].String(), topK, nil)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}
	data, _ := json.Marshal(result)
	return string(data)
}

func clearStore(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	stats, err := store.Stats(context.Background())
	if err != nil {
		return makeError(err.Error())
	}
	data, _ := json.Marshal(stats)
	return string(data)
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
