package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryCache 测试内存缓存的基本功能
func TestMemoryCache(t *testing.T) {
	config := Config{
		Type:            "memory",
		DefaultTTL:      time.Second * 2,
		CleanupInterval: time.Second,
	}
	cache, err := NewMemoryCache(config)
	require.NoError(t, err)
	require.NotNil(t, cache)

	// 测试Set和Get
	err = cache.Set("key1", "value1", 0) // 使用默认TTL
	assert.NoError(t, err)

	val, found, err := cache.Get("key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value1", val)

	// 测试不存在的键
	val, found, err = cache.Get("non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试过期
	err = cache.Set("expire-soon", "temp-value", time.Millisecond*500)
	assert.NoError(t, err)

	time.Sleep(time.Second)

	val, found, err = cache.Get("expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试删除
	err = cache.Set("to-delete", "delete-me", 0)
	assert.NoError(t, err)

	err = cache.Delete("to-delete")
	assert.NoError(t, err)

	_, found, err = cache.Get("to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	// 测试按合同删除：正文和报告一起失效，其他合同不受影响
	require.NoError(t, cache.Set(TextKey("contract-1"), "text", 0))
	require.NoError(t, cache.Set(ReportKey("contract-1"), "report", 0))
	require.NoError(t, cache.Set(TextKey("contract-2"), "other", 0))

	err = cache.DeleteContract("contract-1")
	assert.NoError(t, err)

	_, found, _ = cache.Get(TextKey("contract-1"))
	assert.False(t, found)
	_, found, _ = cache.Get(ReportKey("contract-1"))
	assert.False(t, found)
	_, found, _ = cache.Get(TextKey("contract-2"))
	assert.True(t, found)

	// 测试清空
	err = cache.Set("key2", "value2", 0)
	assert.NoError(t, err)

	err = cache.Clear()
	assert.NoError(t, err)

	_, found, err = cache.Get("key2")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestRedisCache 用miniredis模拟Redis服务器
func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	config := Config{
		Type:       "redis",
		RedisAddr:  mr.Addr(),
		DefaultTTL: time.Second * 2,
	}

	cache, err := NewRedisCache(config)
	require.NoError(t, err)
	require.NotNil(t, cache)

	// 测试Set和Get
	err = cache.Set("redis-key1", "redis-value1", 0)
	assert.NoError(t, err)

	val, found, err := cache.Get("redis-key1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "redis-value1", val)

	// 测试不存在的键
	val, found, err = cache.Get("redis-non-existent")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, val)

	// 测试过期，miniredis需要手动推进时间
	err = cache.Set("redis-expire-soon", "redis-temp-value", time.Second)
	assert.NoError(t, err)
	mr.FastForward(time.Second * 2)

	_, found, err = cache.Get("redis-expire-soon")
	assert.NoError(t, err)
	assert.False(t, found)

	// 测试删除
	err = cache.Set("redis-to-delete", "redis-delete-me", 0)
	assert.NoError(t, err)

	err = cache.Delete("redis-to-delete")
	assert.NoError(t, err)

	_, found, err = cache.Get("redis-to-delete")
	assert.NoError(t, err)
	assert.False(t, found)

	// 测试按合同删除
	require.NoError(t, cache.Set(TextKey("contract-1"), "text", 0))
	require.NoError(t, cache.Set(ReportKey("contract-1"), "report", 0))

	err = cache.DeleteContract("contract-1")
	assert.NoError(t, err)

	_, found, _ = cache.Get(TextKey("contract-1"))
	assert.False(t, found)
	_, found, _ = cache.Get(ReportKey("contract-1"))
	assert.False(t, found)

	// 测试清空
	err = cache.Set("redis-key2", "redis-value2", 0)
	assert.NoError(t, err)
	err = cache.Clear()
	assert.NoError(t, err)

	_, found, err = cache.Get("redis-key2")
	assert.NoError(t, err)
	assert.False(t, found)
}

// TestCacheFactory 测试缓存工厂函数
func TestCacheFactory(t *testing.T) {
	// 测试内存缓存创建
	memCache, err := NewCache(DefaultConfig())
	assert.NoError(t, err)
	assert.NotNil(t, memCache)

	// 测试Redis缓存创建
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	redisCache, err := NewCache(Config{
		Type:      "redis",
		RedisAddr: mr.Addr(),
	})
	require.NoError(t, err)
	require.NotNil(t, redisCache)
	assert.NoError(t, redisCache.Set("factory-test", "value", 0))

	// 测试未知缓存类型（应该返回默认内存缓存）
	unknownCache, err := NewCache(Config{Type: "unknown-type"})
	assert.NoError(t, err)
	assert.NotNil(t, unknownCache)
}

// TestCacheKeys 测试缓存键生成
func TestCacheKeys(t *testing.T) {
	key := GenerateCacheKey("prefix")
	assert.Equal(t, "prefix", key)

	key = GenerateCacheKey("prefix", "part1")
	assert.Equal(t, "prefix:part1", key)

	key = GenerateCacheKey("prefix", "part1", "part2", "part3")
	assert.Equal(t, "prefix:part1:part2:part3", key)

	assert.Equal(t, "contract:report:abc", ReportKey("abc"))
	assert.Equal(t, "contract:text:abc", TextKey("abc"))
}
