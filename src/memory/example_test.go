package memory

import (
	"context"
	"fmt"
)

func ExampleNewEngine() {
	store := NewInMemoryStore()
	engine := NewEngine(store, Options{}).WithEmbedder(DummyEmbedder{})
	ctx := context.Background()

	engine.Store().WriteMemory(ctx, MemoryRecord{
		UserID:  "demo",
		Content: "Customer reported login issue",
	})
	engine.Store().WriteMemory(ctx, MemoryRecord{
		UserID:  "demo",
		Content: "Track onboarding progress",
	})

	result, _ := engine.RetrieveContext(ctx, RetrieveRequest{
		UserID: "demo",
		Query:  "login issue",
		Limit:  1,
	})
	fmt.Println(len(result.MemoriesUsed) > 0)
	// Output: true
}
