// Package store 提供 core.Store 的实现，用于存放和分发模型产物。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	fetcher := artifact.NewStoreFetcher(s)
//	data, err := fetcher.Fetch(ctx, "store://churn:v3:model")
package store
