package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/stager/internal/api"
)

var serverURL string

var queueCmd = &cobra.Command{
	Use:   "queue <chainId> <safeAddress>",
	Short: "Show the staged transactions of a Safe",
	Args:  cobra.ExactArgs(2),
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "stager API base URL")
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	queue, err := fetchQueue(ctx, http.DefaultClient, serverURL, args[0], args[1])
	if err != nil {
		return err
	}

	printQueue(cmd.OutOrStdout(), queue)
	return nil
}

func fetchQueue(ctx context.Context, client *http.Client, base, chainID, address string) ([]api.StagedResponse, error) {
	endpoint := strings.TrimRight(base, "/") + "/" + url.PathEscape(chainID) + "/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodyBytes*16))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("server returned %d: %s: %s", resp.StatusCode, e.Error, e.Message)
		}
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var queue []api.StagedResponse
	if err := json.Unmarshal(body, &queue); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return queue, nil
}

func printQueue(out io.Writer, queue []api.StagedResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "NONCE\tTO\tVALUE\tOP\tSIGS")
	for _, e := range queue {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", e.Nonce, e.Txn.To, e.Txn.Value, e.Txn.Operation, len(e.Sigs))
	}
	_ = w.Flush()
}
