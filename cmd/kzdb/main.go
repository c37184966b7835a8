// Command kzdb is a single-process REPL over the embedded database,
// grounded on tuannm99-novasql/cmd/client's readline loop and table
// renderer, adapted to drive internal/executor directly instead of
// dialing a network server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/afero"

	kzdb "github.com/kzdb/kzdb"
	"github.com/kzdb/kzdb/internal/config"
	"github.com/kzdb/kzdb/internal/executor"
	"github.com/kzdb/kzdb/internal/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		oneShotSQL = flag.String("c", "", "execute one SQL statement and exit (trailing ';' optional)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log := logging.New(logging.Config{Level: logging.Level(cfg.Logging.Level), Format: cfg.Logging.Format})

	db, err := kzdb.Open(afero.NewOsFs(), cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if strings.TrimSpace(*oneShotSQL) != "" {
		res, err := db.Execute(*oneShotSQL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		printResult(res)
		return
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "kzdb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     defaultHistoryPath(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("type \\help for help")

	var buf strings.Builder
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt("kzdb> ")
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit   quit
  \help               show help

sql:
  end statement with ';'
  multiline is supported (the REPL waits until ';')`)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !strings.HasSuffix(strings.TrimSpace(buf.String()), ";") {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := strings.TrimSuffix(strings.TrimSpace(buf.String()), ";")
		buf.Reset()
		rl.SetPrompt("kzdb> ")

		res, err := db.Execute(stmt)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

func isMetaCommand(line string) bool {
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

func printResult(res executor.Result) {
	if len(res.Columns) == 0 {
		fmt.Printf("OK (%d affected)\n", res.AffectedRows)
		return
	}

	cols := res.Columns
	rows := res.Rows

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	cellText := func(row []any, i int) string {
		if i < len(row) && row[i] != nil {
			return fmt.Sprintf("%v", row[i])
		}
		return "NULL"
	}
	for _, row := range rows {
		for i := range cols {
			if s := cellText(row, i); len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(values[i], widths[i]))
		}
		fmt.Println()
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", widths[i]))
	}
	fmt.Println()

	for _, row := range rows {
		out := make([]string, len(cols))
		for i := range cols {
			out[i] = cellText(row, i)
		}
		printRow(out)
	}
	fmt.Printf("(%d rows)\n", len(rows))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".kzdb_history"
	}
	return home + "/.kzdb_history"
}
