package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/agora/backend/internal/app"
	"github.com/zhouzirui/agora/backend/internal/config"
	"github.com/zhouzirui/agora/backend/internal/logging"
	"github.com/zhouzirui/agora/backend/internal/orchestration"
	chatService "github.com/zhouzirui/agora/backend/internal/service/chat"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always happens before exit.
func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	flags := flag.NewFlagSet("discuss", flag.ContinueOnError)
	flags.SetOutput(stderr)
	question := flags.String("q", "", "要讨论的问题")
	questionsFile := flags.String("file", "", "问题文件, 每行一个问题")
	parallel := flags.Int("parallel", 2, "同时进行的讨论数")
	manager := flags.String("manager", "", "覆盖 AGORA_MANAGER: model 或 round_robin")
	showTurns := flags.Bool("turns", true, "打印每位参与者的发言")
	timeout := flags.Duration("timeout", 2*time.Minute, "每个问题的超时时间")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "配置加载失败: %v\n", err)
		return 1
	}
	if *manager != "" {
		cfg.Orchestration.Manager = *manager
	}

	logger := logging.New(cfg.Log.Level, "console")
	defer func() { _ = logger.Sync() }()

	questions, err := collectQuestions(*question, *questionsFile, flags.Args())
	if err != nil {
		logger.Error("读取问题失败", zap.Error(err))
		return 1
	}
	if len(questions) == 0 {
		flags.Usage()
		logger.Error("请通过 -q, -file 或参数提供至少一个问题")
		return 2
	}

	ctx := context.Background()
	application, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("初始化失败", zap.Error(err))
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("关闭失败", zap.Error(err))
		}
	}()

	runner := discussion{
		asker:     application.Orchestrator,
		parallel:  *parallel,
		timeout:   *timeout,
		showTurns: *showTurns,
	}
	if err := runner.askAll(ctx, questions, stdout); err != nil {
		logger.Error("讨论失败", zap.Error(err))
		return 1
	}
	return 0
}

// collectQuestions merges the -q flag, the questions file and positional arguments, skipping blank lines.
func collectQuestions(single, path string, args []string) ([]string, error) {
	var questions []string
	add := func(q string) {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}

	add(single)
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			add(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	for _, arg := range args {
		add(arg)
	}
	return questions, nil
}

type discussion struct {
	asker     chatService.Asker
	parallel  int
	timeout   time.Duration
	showTurns bool
}

// askAll runs every question, at most parallel at a time, and prints each discussion as one block.
// The first failure cancels the remaining discussions.
func (d discussion) askAll(ctx context.Context, questions []string, out io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	if d.parallel > 0 {
		g.SetLimit(d.parallel)
	}

	var mu sync.Mutex
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			var block bytes.Buffer
			err := d.ask(ctx, q, &block)

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "=== [%d] %s\n", i+1, q)
			_, _ = out.Write(block.Bytes())
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				return fmt.Errorf("question %d: %w", i+1, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (d discussion) ask(ctx context.Context, question string, out io.Writer) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var observers []orchestration.Observer
	if d.showTurns {
		observers = append(observers, func(event orchestration.Event) {
			if event.Type == orchestration.EventTurn && event.Turn != nil && event.Turn.Sequence > 1 {
				fmt.Fprintf(out, "%d. %s\n", event.Turn.Sequence-1, event.Turn.String())
			}
		})
	}

	result, err := d.asker.AskWithObserver(ctx, question, orchestration.NewCollector(zap.NewNop(), observers...))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "answer (%s, %d turns): %s\n", result.TerminationReason, result.Invocations, result.Answer)
	return nil
}
