package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryQueue 实现Queue接口的内存队列，仅用于测试回调处理器
type memoryQueue struct {
	mu    sync.Mutex
	tasks map[string]*Task
	seq   int
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{tasks: make(map[string]*Task)}
}

func (q *memoryQueue) Enqueue(ctx context.Context, taskType TaskType, contractID string, payload interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	taskID := fmt.Sprintf("task-%d", q.seq)
	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	q.tasks[taskID] = &Task{
		ID:         taskID,
		Type:       taskType,
		ContractID: contractID,
		Status:     StatusPending,
		Payload:    payloadBytes,
		CreatedAt:  time.Now(),
	}
	return taskID, nil
}

func (q *memoryQueue) EnqueueAt(ctx context.Context, taskType TaskType, contractID string, payload interface{}, processAt time.Time) (string, error) {
	return q.Enqueue(ctx, taskType, contractID, payload)
}

func (q *memoryQueue) EnqueueIn(ctx context.Context, taskType TaskType, contractID string, payload interface{}, delay time.Duration) (string, error) {
	return q.Enqueue(ctx, taskType, contractID, payload)
}

func (q *memoryQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (q *memoryQueue) GetTasksByContract(ctx context.Context, contractID string) ([]*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var tasks []*Task
	for _, task := range q.tasks {
		if task.ContractID == contractID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (q *memoryQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	return q.GetTask(ctx, taskID)
}

func (q *memoryQueue) DeleteTask(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.tasks, taskID)
	return nil
}

func (q *memoryQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.Error = errorMsg
	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return err
		}
		task.Result = resultBytes
	}
	return nil
}

func (q *memoryQueue) NotifyTaskUpdate(ctx context.Context, taskID string) error {
	return nil
}

func (q *memoryQueue) Close() error {
	return nil
}

// mustEnqueue 入队并返回任务ID，失败时中止测试
func mustEnqueue(t *testing.T, q Queue, taskType TaskType, contractID string) string {
	taskID, err := q.Enqueue(context.Background(), taskType, contractID, nil)
	require.NoError(t, err)
	return taskID
}

// TestNewCallbackProcessor 测试创建回调处理器
func TestNewCallbackProcessor(t *testing.T) {
	queue := newMemoryQueue()
	processor := NewCallbackProcessor(queue, logrus.New())
	assert.NotNil(t, processor)

	// 不传logger时使用默认logger
	processor = NewCallbackProcessor(queue, nil)
	assert.NotNil(t, processor)
}

// TestRegisterHandler 测试注册处理函数
func TestRegisterHandler(t *testing.T) {
	processor := NewCallbackProcessor(newMemoryQueue(), logrus.New())

	handlerCalled := false
	processor.RegisterHandler(TaskContractParse, func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		return nil
	})

	types := processor.GetRegisteredHandlerTypes()
	assert.True(t, types[TaskContractParse])

	err := processor.handlers[TaskContractParse](context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.True(t, handlerCalled)
}

// TestSetDefaultHandler 测试设置默认处理函数
func TestSetDefaultHandler(t *testing.T) {
	processor := NewCallbackProcessor(newMemoryQueue(), logrus.New())

	defaultHandlerCalled := false
	processor.SetDefaultHandler(func(ctx context.Context, task *Task, result json.RawMessage) error {
		defaultHandlerCalled = true
		return nil
	})

	require.NotNil(t, processor.defaultFn)
	err := processor.defaultFn(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.True(t, defaultHandlerCalled)
}

// TestProcessCallback_ValidData 测试处理有效的回调数据
func TestProcessCallback_ValidData(t *testing.T) {
	queue := newMemoryQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := mustEnqueue(t, queue, TaskContractParse, "contract-1")

	// 注册一个处理函数
	handlerCalled := false
	processor.RegisterHandler(TaskContractParse, func(ctx context.Context, task *Task, result json.RawMessage) error {
		handlerCalled = true
		assert.Equal(t, taskID, task.ID)
		assert.Equal(t, json.RawMessage(`{"test":"data"}`), result)
		return nil
	})

	callback := &TaskCallback{
		TaskID:     taskID,
		ContractID: "contract-1",
		Status:     StatusCompleted,
		Type:       TaskContractParse,
		Result:     json.RawMessage(`{"test":"data"}`),
		Timestamp:  time.Now(),
	}
	callbackData, err := json.Marshal(callback)
	require.NoError(t, err)

	err = processor.ProcessCallback(context.Background(), callbackData)
	assert.NoError(t, err)
	assert.True(t, handlerCalled)

	// 任务状态已同步更新
	task, err := queue.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
}

// TestProcessCallback_InvalidData 测试处理无效的回调数据
func TestProcessCallback_InvalidData(t *testing.T) {
	processor := NewCallbackProcessor(newMemoryQueue(), logrus.New())

	err := processor.ProcessCallback(context.Background(), []byte("not json"))
	assert.Error(t, err)
}

// TestProcessCallback_TaskNotFound 测试回调指向不存在的任务
func TestProcessCallback_TaskNotFound(t *testing.T) {
	processor := NewCallbackProcessor(newMemoryQueue(), logrus.New())

	callbackData, err := json.Marshal(&TaskCallback{
		TaskID: "missing-task",
		Status: StatusCompleted,
		Type:   TaskContractParse,
	})
	require.NoError(t, err)

	err = processor.ProcessCallback(context.Background(), callbackData)
	assert.Error(t, err)
}

// TestHandleCallback 测试HTTP回调请求处理
func TestHandleCallback(t *testing.T) {
	queue := newMemoryQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := mustEnqueue(t, queue, TaskContractAnalyze, "contract-1")

	req := &CallbackRequest{
		TaskID:     taskID,
		ContractID: "contract-1",
		Status:     StatusCompleted,
		Type:       TaskContractAnalyze,
		Result:     json.RawMessage(`{"contract_id":"contract-1","overall_risk_score":5}`),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := processor.HandleCallback(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, taskID, resp.TaskID)
}

// TestHandleCallback_InvalidTimestamp 测试无法解析的时间戳回退到当前时间
func TestHandleCallback_InvalidTimestamp(t *testing.T) {
	queue := newMemoryQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	taskID := mustEnqueue(t, queue, TaskContractParse, "contract-1")

	req := &CallbackRequest{
		TaskID:    taskID,
		Status:    StatusCompleted,
		Type:      TaskContractParse,
		Timestamp: "not-a-timestamp",
	}

	resp, err := processor.HandleCallback(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

// TestRegisterDefaultHandlers 测试注册默认处理函数
func TestRegisterDefaultHandlers(t *testing.T) {
	queue := newMemoryQueue()
	processor := NewCallbackProcessor(queue, logrus.New())

	processor.RegisterDefaultHandlers(queue)

	types := processor.GetRegisteredHandlerTypes()
	assert.True(t, types[TaskContractParse])
	assert.True(t, types[TaskContractAnalyze])
	assert.True(t, types[TaskAnalyzePipeline])
}

// TestDefaultContractParseHandler 测试解析完成后自动创建分析任务
func TestDefaultContractParseHandler(t *testing.T) {
	queue := newMemoryQueue()
	logger := logrus.New()
	handler := DefaultContractParseHandler(context.Background(), queue, logger)

	task := &Task{
		ID:         "parse-task",
		Type:       TaskContractParse,
		ContractID: "contract-1",
	}

	result, err := json.Marshal(&ContractParseResult{
		Content: "Confidentiality: keep terms secret.",
		Chars:   35,
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task, result))

	// 分析任务已入队
	tasks, err := queue.GetTasksByContract(context.Background(), "contract-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskContractAnalyze, tasks[0].Type)

	var payload ContractAnalyzePayload
	require.NoError(t, UnmarshalPayload(tasks[0].Payload, &payload))
	assert.Equal(t, "Confidentiality: keep terms secret.", payload.Text)

	// 空内容不创建后续任务
	emptyResult, _ := json.Marshal(&ContractParseResult{Content: ""})
	require.NoError(t, handler(context.Background(), &Task{ID: "t2", ContractID: "contract-2"}, emptyResult))
	tasks, err = queue.GetTasksByContract(context.Background(), "contract-2")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestDefaultContractAnalyzeHandler 测试分析完成回调
func TestDefaultContractAnalyzeHandler(t *testing.T) {
	queue := newMemoryQueue()
	handler := DefaultContractAnalyzeHandler(context.Background(), queue, logrus.New())

	result, err := json.Marshal(&ContractAnalyzeResult{
		ContractID:       "contract-1",
		ClauseCount:      3,
		OverallRiskScore: 6,
	})
	require.NoError(t, err)

	err = handler(context.Background(), &Task{ID: "t1", ContractID: "contract-1"}, result)
	assert.NoError(t, err)

	// 非法结果报错
	err = handler(context.Background(), &Task{ID: "t1"}, json.RawMessage("broken"))
	assert.Error(t, err)
}
