// Command infohub-client drives the gateway end to end with a chat model: it
// fetches the tool catalog, lets the model decide which tools to call,
// executes the calls through the gateway, and prints the final answer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/mcp"
	"github.com/effective-security/infohub/mcp/transport/httpclient"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000/mcp", "gateway endpoint URL")
	model := flag.String("model", "gpt-4o", "chat model")
	prompt := flag.String("prompt", "What is 2 + 3? And what does our refund policy say?", "user prompt")
	flag.Parse()

	if err := run(context.Background(), *serverURL, *model, *prompt); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, serverURL, model, prompt string) error {
	client := mcp.NewClient(httpclient.New(serverURL))
	initResp, err := client.Initialize(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to initialize gateway client")
	}
	fmt.Printf("connected to %s %s\n", initResp.ServerInfo.Name, initResp.ServerInfo.Version)

	toolsResp, err := client.ListTools(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to list tools")
	}

	chatTools, err := toChatTools(toolsResp)
	if err != nil {
		return err
	}
	for _, def := range toolsResp.Tools {
		fmt.Printf("tool: %s - %s\n", def.Name, def.Description)
	}

	llm := openai.NewClient() // OPENAI_API_KEY from the environment
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	}

	resp, err := llm.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		Tools:    chatTools,
	})
	if err != nil {
		return errors.WithMessage(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return errors.New("no completion choices returned")
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) == 0 {
		fmt.Println(message.Content)
		return nil
	}

	messages = append(messages, message.ToParam())
	for _, call := range message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return errors.Wrapf(err, "invalid arguments for tool %s", call.Function.Name)
		}

		res, err := client.CallTool(ctx, call.Function.Name, args)
		if err != nil {
			return errors.WithMessagef(err, "failed to call tool %s", call.Function.Name)
		}

		var content string
		if res.Status == mcp.StatusSuccess {
			content = string(res.Value)
		} else {
			content = fmt.Sprintf("tool error (%s): %s", res.Kind, res.Message)
		}
		fmt.Printf("%s(%s) -> %s\n", call.Function.Name, call.Function.Arguments, content)

		messages = append(messages, openai.ToolMessage(content, call.ID))
	}

	final, err := llm.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		Tools:    chatTools,
	})
	if err != nil {
		return errors.WithMessage(err, "final completion failed")
	}
	if len(final.Choices) == 0 {
		return errors.New("no completion choices returned")
	}

	fmt.Println(final.Choices[0].Message.Content)
	return nil
}

// toChatTools converts the gateway catalog into chat tool definitions.
func toChatTools(toolsResp *mcp.ToolsResponse) ([]openai.ChatCompletionToolUnionParam, error) {
	chatTools := make([]openai.ChatCompletionToolUnionParam, 0, len(toolsResp.Tools))
	for _, def := range toolsResp.Tools {
		schemaJSON, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal schema for tool %s", def.Name)
		}
		var params map[string]any
		if err := json.Unmarshal(schemaJSON, &params); err != nil {
			return nil, errors.Wrapf(err, "failed to convert schema for tool %s", def.Name)
		}

		fn := shared.FunctionDefinitionParam{
			Name:       def.Name,
			Parameters: params,
		}
		if def.Description != "" {
			fn.Description = openai.String(def.Description)
		}
		chatTools = append(chatTools, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: fn,
			},
		})
	}
	return chatTools, nil
}
