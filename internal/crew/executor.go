package crew

import (
	"context"

	"jobcrew/internal/common/llm"
)

const forceFinalAnswerPrompt = "You have used the maximum number of tool calls. " +
	"Do not call any more tools. Give your best Final Answer now, based on what you have gathered."

// executeTask runs the agent's tool-calling loop for one task: the model is
// called with the agent's tools until it answers without a tool call. After
// maxIter rounds one more call is made with tools disabled.
func (c *Crew) executeTask(ctx context.Context, task *Task, taskContext string, usage *llm.Usage) (string, error) {
	agent := task.Agent
	tb := newToolbox(agent.Tools, c.Logger)

	maxIter := agent.MaxIterations
	if maxIter <= 0 {
		maxIter = c.MaxIterations
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: agent.systemPrompt()},
		{Role: llm.RoleUser, Content: task.prompt(taskContext)},
	}

	for i := 0; i < maxIter; i++ {
		resp, err := c.LLM.Chat(ctx, llm.ChatRequest{Messages: messages, Tools: tb.defs})
		if err != nil {
			return "", err
		}
		usage.Add(resp.Usage)
		c.log("model responded", map[string]interface{}{
			"agent":     agent.Role,
			"iteration": i + 1,
			"response":  resp.String(),
		})

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			c.log("agent using tool", map[string]interface{}{
				"agent":     agent.Role,
				"tool":      call.Name,
				"arguments": call.Arguments,
			})
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    tb.invoke(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}

	c.Logger.Warn("max iterations reached, forcing final answer", map[string]interface{}{
		"agent":          agent.Role,
		"max_iterations": maxIter,
	})
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: forceFinalAnswerPrompt})
	resp, err := c.LLM.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	usage.Add(resp.Usage)
	return resp.Content, nil
}
