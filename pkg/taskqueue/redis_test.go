package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func newTestQueue(t *testing.T, redisAddr string) Queue {
	cfg := &Config{
		RedisAddr:   redisAddr,
		Concurrency: 2,
		RetryLimit:  2,
		RetryDelay:  time.Second,
	}

	queue, err := NewRedisQueue(cfg)
	require.NoError(t, err)
	return queue
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	assert.NotNil(t, queue)
	assert.NoError(t, queue.Close())
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	payload := &ContractParsePayload{
		FilePath: "contracts/agreement.pdf",
		FileName: "agreement.pdf",
		FileType: "pdf",
	}

	// 测试基本入队
	taskID, err := queue.Enqueue(ctx, TaskContractParse, "contract-123", payload)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskContractParse, task.Type)
	assert.Equal(t, "contract-123", task.ContractID)
	assert.Equal(t, StatusPending, task.Status)

	// 载荷能反序列化回原结构
	var decoded ContractParsePayload
	require.NoError(t, UnmarshalPayload(task.Payload, &decoded))
	assert.Equal(t, "agreement.pdf", decoded.FileName)
}

// TestRedisQueue_EnqueueIn 测试延迟入队
func TestRedisQueue_EnqueueIn(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.EnqueueIn(ctx, TaskContractAnalyze, "contract-123",
		&ContractAnalyzePayload{ContractID: "contract-123", Text: "text"}, time.Minute)
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
}

// TestRedisQueue_GetTask_NotFound 测试获取不存在的任务
func TestRedisQueue_GetTask_NotFound(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	_, err := queue.GetTask(context.Background(), "missing-task")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_GetTasksByContract 测试按合同查询任务
func TestRedisQueue_GetTasksByContract(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	contractID := "contract-multi"

	id1, err := queue.Enqueue(ctx, TaskContractParse, contractID, nil)
	require.NoError(t, err)
	id2, err := queue.Enqueue(ctx, TaskContractAnalyze, contractID, nil)
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskContractParse, "other-contract", nil)
	require.NoError(t, err)

	tasks, err := queue.GetTasksByContract(ctx, contractID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	ids := map[string]bool{}
	for _, task := range tasks {
		ids[task.ID] = true
		assert.Equal(t, contractID, task.ContractID)
	}
	assert.True(t, ids[id1])
	assert.True(t, ids[id2])

	// 无任务的合同返回空列表
	tasks, err = queue.GetTasksByContract(ctx, "no-tasks")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_UpdateTaskStatus 测试更新任务状态
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskContractAnalyze, "contract-123", nil)
	require.NoError(t, err)

	// 更新为处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	// 更新为已完成并附带结果
	result := &ContractAnalyzeResult{
		ContractID:       "contract-123",
		ClauseCount:      4,
		OverallRiskScore: 7,
	}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	require.NoError(t, err)

	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	var decoded ContractAnalyzeResult
	require.NoError(t, UnmarshalPayload(task.Result, &decoded))
	assert.Equal(t, 7, decoded.OverallRiskScore)

	// 更新为失败并附带错误信息
	err = queue.UpdateTaskStatus(ctx, taskID, StatusFailed, nil, "analyze error")
	require.NoError(t, err)
	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "analyze error", task.Error)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskContractParse, "contract-123", nil)
	require.NoError(t, err)

	err = queue.DeleteTask(ctx, taskID)
	assert.NoError(t, err)

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// 合同任务集合也被清理
	tasks, err := queue.GetTasksByContract(ctx, "contract-123")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_WaitForTask 测试等待任务完成
func TestRedisQueue_WaitForTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue := newTestQueue(t, redisAddr)
	defer queue.Close()

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskContractAnalyze, "contract-123", nil)
	require.NoError(t, err)

	// 已完成的任务直接返回
	require.NoError(t, queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""))
	task, err := queue.WaitForTask(ctx, taskID, time.Second*5)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	// 未完成的任务等待超时
	pendingID, err := queue.Enqueue(ctx, TaskContractAnalyze, "contract-456", nil)
	require.NoError(t, err)
	_, err = queue.WaitForTask(ctx, pendingID, time.Millisecond*100)
	assert.ErrorIs(t, err, ErrTaskTimeout)
}

// TestTaskInfo 测试任务元信息转换
func TestTaskInfo(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:         "task-1",
		Type:       TaskContractAnalyze,
		ContractID: "contract-1",
		Status:     StatusCompleted,
		CreatedAt:  now,
		StartedAt:  &now,
	}

	info := NewTaskInfo(task)
	assert.Equal(t, "task-1", info.ID)
	assert.Equal(t, "contract-1", info.ContractID)
	assert.Equal(t, float64(100), info.Progress)

	task.Status = StatusPending
	assert.Equal(t, float64(0), NewTaskInfo(task).Progress)
	task.Status = StatusProcessing
	assert.Equal(t, float64(50), NewTaskInfo(task).Progress)
}

// TestNewQueueFactory 测试队列工厂
func TestNewQueueFactory(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewQueue("redis", &Config{RedisAddr: redisAddr})
	require.NoError(t, err)
	assert.NotNil(t, queue)
	queue.Close()

	_, err = NewQueue("unknown", nil)
	assert.Error(t, err)
}
