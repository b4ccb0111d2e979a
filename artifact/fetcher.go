// Package artifact 负责读取模型产物（feature_meta.json、feature_scaler.json、model.json）。
//
// 产物来源由 source 的 scheme 决定：
//   - 本地文件：artifacts/model.json 或 file:///srv/artifacts/model.json
//   - HTTP 接口：https://models.example.com/churn/v3/model.json
//   - 键值存储：store://churn:v3:model（Redis / 内存）
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rushteam/retainiq/core"
)

// Fetcher 读取产物的原始字节。产物不存在时返回 NOT_FOUND 领域错误，
// 便于区分"可选产物缺失"和"产物不可读"。
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// FetcherFunc 函数适配器
type FetcherFunc func(ctx context.Context, source string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

func notFound(source string, cause error) error {
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeNotFound,
		fmt.Sprintf("artifact %q not found", source), cause)
}

// FileFetcher 本地文件产物读取器
type FileFetcher struct{}

func NewFileFetcher() *FileFetcher {
	return &FileFetcher{}
}

func (f *FileFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	path := strings.TrimPrefix(source, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(source, err)
		}
		return nil, fmt.Errorf("读取产物文件失败: %w", err)
	}
	return data, nil
}

// HTTPFetcher HTTP 接口产物读取器
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建 HTTP 产物读取器，timeout 为 0 时默认 10s。
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return NewHTTPFetcherWithClient(&http.Client{Timeout: timeout})
}

// NewHTTPFetcherWithClient 使用自定义 HTTP 客户端创建读取器（例如带私有 CA 的 TLS 客户端）；
// client 为 nil 时使用 http.DefaultClient。
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound(url, nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}

// StoreFetcher 从 core.Store（Redis / 内存）读取产物，source 形如 store://<key>。
type StoreFetcher struct {
	store core.Store
}

func NewStoreFetcher(store core.Store) *StoreFetcher {
	return &StoreFetcher{store: store}
}

func (f *StoreFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	key := strings.TrimPrefix(source, StoreScheme)
	if key == "" {
		return nil, fmt.Errorf("产物 key 为空: %q", source)
	}
	data, err := f.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, notFound(source, err)
		}
		return nil, fmt.Errorf("读取 %s 产物失败: %w", f.store.Name(), err)
	}
	return data, nil
}

// StoreScheme 键值存储产物前缀
const StoreScheme = "store://"

// Router 根据 source 的 scheme 选择读取器。
type Router struct {
	File  Fetcher
	HTTP  Fetcher
	Store Fetcher // 可选，未配置时 store:// 返回 NOT_SUPPORTED
}

// NewRouter 创建默认路由：本地文件 + HTTP，store 为可选。
func NewRouter(httpTimeout time.Duration, store core.Store) *Router {
	r := &Router{
		File: NewFileFetcher(),
		HTTP: NewHTTPFetcher(httpTimeout),
	}
	if store != nil {
		r.Store = NewStoreFetcher(store)
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "":
		return nil, notFound(source, nil)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return r.HTTP.Fetch(ctx, source)
	case strings.HasPrefix(source, StoreScheme):
		if r.Store == nil {
			return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeNotSupported,
				fmt.Sprintf("artifact %q: no store configured", source))
		}
		return r.Store.Fetch(ctx, source)
	default:
		return r.File.Fetch(ctx, source)
	}
}
