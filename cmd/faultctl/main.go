// Package main is the entry point for faultctl, a CLI client
// for the coordinator admin API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/net/websocket"
)

var (
	version = "dev"
)

const defaultAddr = "http://localhost:8080"

func usage() {
	fmt.Fprintf(os.Stderr, `faultctl - Fault Injection Coordinator CLI

Usage:
  faultctl [--addr URL] <command> [options]

Commands:
  status     コーディネーターの状態を表示
  state      現在の障害状態を表示
  inject     障害を注入 (--scenario または --mode/--delay)
  clear      障害を解除
  enable     自動注入を有効化
  disable    自動注入を無効化
  presets    利用可能なプリセットを表示
  watch      イベントストリームを購読
  version    バージョンを表示

Examples:
  faultctl status
  faultctl inject --scenario crash
  faultctl inject --mode slow --delay 15
  faultctl clear
  faultctl --addr http://chaos-host:8080 watch
`)
}

func main() {
	addr := flag.String("addr", defaultAddr, "管理APIのベースURL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	client := &client{base: strings.TrimRight(*addr, "/")}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "status":
		err = client.get("/api/status")
	case "state":
		err = client.get("/api/state")
	case "inject":
		err = runInject(client, flag.Args()[1:])
	case "clear":
		err = client.post("/api/clear", nil)
	case "enable":
		err = client.post("/api/enable", nil)
	case "disable":
		err = client.post("/api/disable", nil)
	case "presets":
		err = client.get("/api/presets")
	case "watch":
		err = client.watch()
	case "version":
		fmt.Printf("faultctl version %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "faultctl: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "faultctl: %v\n", err)
		os.Exit(1)
	}
}

func runInject(c *client, args []string) error {
	fs := flag.NewFlagSet("inject", flag.ExitOnError)
	scenarioName := fs.String("scenario", "", "注入するシナリオ名 (crash, slowdown, config_error)")
	mode := fs.String("mode", "", "注入する障害モード (crash, slow, config_error)")
	delay := fs.Float64("delay", 0, "slowモードの遅延秒数")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *scenarioName == "" && *mode == "" {
		return fmt.Errorf("either --scenario or --mode is required")
	}

	body := map[string]interface{}{}
	if *scenarioName != "" {
		body["scenario"] = *scenarioName
	}
	if *mode != "" {
		body["mode"] = *mode
	}
	if *delay > 0 {
		body["delay"] = *delay
	}

	return c.post("/api/inject", body)
}

type client struct {
	base string
}

func (c *client) get(path string) error {
	resp, err := http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func (c *client) post(path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := http.Post(c.base+path, "application/json", reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// watch はWebSocketでイベントストリームを購読し、1行1メッセージで出力する
func (c *client) watch() error {
	wsURL := strings.Replace(c.base, "http", "ws", 1) + "/ws"

	ws, err := websocket.Dial(wsURL, "", c.base)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer ws.Close()

	fmt.Fprintf(os.Stderr, "watching %s (Ctrl+C to stop)\n", wsURL)

	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		fmt.Printf("%s %s\n", time.Now().Format(time.RFC3339), msg)
	}
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	// 見やすいようにインデントして出力
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(data)))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
