package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/core"
	"github.com/mikey/llm-chat-client/internal/factory"
	"github.com/mikey/llm-chat-client/internal/logging"
)

var (
	backend = flag.String("backend", "cerebras", "Conversation backend (cerebras, test, mock, bedrock, gemini)")
	model   = flag.String("model", "", "Model ID for the session (backend default if empty)")
	user    = flag.String("user", "cli-user", "User ID owning the session")
	apiKey  = flag.String("api-key", "", "Backend API key (falls back to the backend's environment variable)")
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := factory.NewDefaultRegistry()
	client, err := registry.CreateClient(*backend, factory.Options{APIKey: *apiKey, Logger: logger})
	if err != nil {
		logger.Error("Failed to create conversation client", zap.Error(err))
		os.Exit(1)
	}
	defer closeClient(client, logger)

	switch flag.Arg(0) {
	case "models":
		printModels(client)
	case "", "chat":
		if err := runChat(client, *user, *model); err != nil {
			logger.Error("Chat session failed", zap.Error(err))
			closeClient(client, logger)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown command %q (expected \"chat\" or \"models\")\n", flag.Arg(0))
		os.Exit(2)
	}
}

func closeClient(client core.ConversationClient, logger *zap.Logger) {
	if closer, ok := client.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close conversation client", zap.Error(err))
		}
	}
}

// runChat drives a line-oriented conversation loop. Plain lines go to
// the session; /-commands drive everything else.
func runChat(client core.ConversationClient, userID, model string) error {
	sessionID, err := client.StartNewSession(userID, model)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Printf("Started session %s\n", sessionID)
	fmt.Printf("Type a message and press enter. /help lists commands.\n")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := runCommand(client, sessionID, line); done {
				break
			}
			continue
		}

		result, err := client.SendMessage(context.Background(), sessionID, line, nil)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("AI: %s\n", result.Response)
	}

	printMetrics(client, sessionID)
	client.EndSession(sessionID)
	return scanner.Err()
}

// runCommand executes one /-command and reports whether the loop should
// exit.
func runCommand(client core.ConversationClient, sessionID, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		printHelp()
	case "/models":
		printModels(client)
	case "/switch":
		if len(fields) != 2 {
			fmt.Println("Usage: /switch <model-id>")
			break
		}
		if err := client.SwitchModel(sessionID, fields[1]); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("Switched to %s\n", fields[1])
	case "/history":
		limit := 0
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("Usage: /history [n]")
				break
			}
			limit = n
		}
		messages, err := client.GetChatHistory(sessionID, limit)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		for _, m := range messages {
			fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), senderLabel(m.Sender), m.Content)
		}
	case "/summary":
		summary, err := client.SummarizeConversation(context.Background(), sessionID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Println(summary)
	case "/metrics":
		printMetrics(client, sessionID)
	case "/export":
		format := core.FormatText
		if len(fields) > 1 {
			format = core.ExportFormat(fields[1])
		}
		out, err := client.ExportChatHistory(sessionID, format)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Println(out)
	case "/attach":
		if len(fields) < 2 {
			fmt.Println("Usage: /attach <path> [description]")
			break
		}
		description := strings.Join(fields[2:], " ")
		if err := client.AttachFile(sessionID, fields[1], description); err != nil {
			fmt.Printf("Error: %v\n", err)
			break
		}
		fmt.Printf("Attached %s\n", fields[1])
	case "/end":
		if client.EndSession(sessionID) {
			fmt.Println("Session ended. History stays readable; /quit exits.")
		} else {
			fmt.Println("No such session.")
		}
	default:
		fmt.Printf("Unknown command %s (/help lists commands)\n", fields[0])
	}
	return false
}

func senderLabel(role core.Role) string {
	switch role {
	case core.RoleUser:
		return "User"
	case core.RoleSystem:
		return "System"
	default:
		return "AI"
	}
}

func printModels(client core.ConversationClient) {
	fmt.Printf("\n=== Available Models ===\n")
	for _, m := range client.ListAvailableModels() {
		marker := ""
		if m.PrivatePreview {
			marker = " (private preview)"
		}
		fmt.Printf("%s - %s%s\n", m.ID, m.Name, marker)
		fmt.Printf("  capabilities: %s; max tokens: %d", strings.Join(m.Capabilities, ", "), m.MaxTokens)
		if m.KnowledgeCutoff != "" {
			fmt.Printf("; knowledge cutoff: %s", m.KnowledgeCutoff)
		}
		fmt.Printf("\n")
	}
}

func printMetrics(client core.ConversationClient, sessionID string) {
	m, err := client.GetUsageMetrics(sessionID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("\n=== Session Usage ===\n")
	fmt.Printf("Tokens used: %d\n", m.TokenCount)
	fmt.Printf("API calls: %d\n", m.APICalls)
	fmt.Printf("Estimated cost: $%.4f\n", m.CostEstimate)
}

func printHelp() {
	fmt.Print(`Commands:
  /models                list the backend's model catalog
  /switch <model-id>     switch the session to another model
  /history [n]           show the last n messages (all if omitted)
  /summary               summarize the conversation so far
  /metrics               show session token, call and cost counters
  /export [json|txt]     print the session in the given format
  /attach <path> [text]  attach a file with an optional description
  /end                   end the session (history stays readable)
  /quit                  exit
`)
}
