package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// entry mirrors the daemon's PortEntry JSON shape.
type entry struct {
	Port        int    `json:"port"`
	PID         int32  `json:"pid"`
	ProcessName string `json:"process_name"`
	LocalAddr   string `json:"local_address"`
	RemoteAddr  string `json:"remote_address"`
	State       string `json:"state"`
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Base URL of the ng-daemon API.")
	expr := flag.String("expr", "", "Port expression to filter on, e.g. '80,443' or '8000-8090'.")
	search := flag.String("search", "", "Free-text filter over port, pid and process name.")
	pids := flag.String("pids", "", "Comma-separated pid list for kill/restart.")
	port := flag.Int("port", 0, "Target port for monitor commands.")
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "list"
	}

	client := &apiClient{base: *addr}

	switch cmd {
	case "list":
		client.list(*expr, *search)
	case "refresh":
		client.post("/api/v1/refresh", nil)
	case "kill":
		client.action("/api/v1/processes/terminate", *pids)
	case "restart":
		client.action("/api/v1/processes/restart", *pids)
	case "monitor":
		client.post("/api/v1/monitor/start", map[string]int{"port": *port})
	case "monitor-stop":
		client.post("/api/v1/monitor/stop", nil)
	case "events":
		client.get("/api/v1/monitor/events")
	case "history":
		client.get("/api/v1/history")
	case "groups":
		client.get("/api/v1/groups")
	default:
		log.Fatalf("Unknown command: %s. Use list, refresh, kill, restart, monitor, monitor-stop, events, history or groups.", cmd)
	}
}

type apiClient struct {
	base string
}

func (c *apiClient) list(expr, search string) {
	params := url.Values{}
	if expr != "" {
		params.Set("expr", expr)
	}
	if search != "" {
		params.Set("search", search)
	}
	path := "/api/v1/ports"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	body := c.request(http.MethodGet, path, nil)
	var resp struct {
		Count   int     `json:"count"`
		Entries []entry `json:"entries"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Fatalf("Error decoding response: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tPID\tPROCESS\tLOCAL\tREMOTE\tSTATE")
	for _, e := range resp.Entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
			e.Port, e.PID, e.ProcessName, e.LocalAddr, e.RemoteAddr, e.State)
	}
	w.Flush()
	fmt.Printf("%d entries\n", resp.Count)
}

func (c *apiClient) action(path, pids string) {
	if pids == "" {
		log.Fatal("No pids given; use -pids 1234,5678")
	}
	var parsed []int32
	for _, s := range strings.Split(pids, ",") {
		pid, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			log.Fatalf("Invalid pid %q: %v", s, err)
		}
		parsed = append(parsed, int32(pid))
	}
	c.post(path, map[string][]int32{"pids": parsed})
}

func (c *apiClient) get(path string) {
	printJSON(c.request(http.MethodGet, path, nil))
}

func (c *apiClient) post(path string, payload interface{}) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("Error marshalling request body: %v", err)
		}
		body = bytes.NewBuffer(data)
	}
	printJSON(c.request(http.MethodPost, path, body))
}

func (c *apiClient) request(method, path string, body io.Reader) []byte {
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		log.Fatalf("Error building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned status %d\nResponse: %s", resp.StatusCode, string(respBody))
	}
	return respBody
}

func printJSON(body []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}
