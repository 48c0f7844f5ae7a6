package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// client talks to the public api of a node.
type client struct {
	url string
	hc  http.Client
}

func newClient(url string) *client {
	c := client{
		url: strings.TrimSuffix(url, "/"),
	}
	c.hc.Timeout = 10 * time.Second

	return &c
}

// balance returns the outputs the node attributes to the user.
func (c *client) balance(user string) (database.Balance, error) {
	var bal database.Balance
	if err := c.get("/utxo/"+user, &bal); err != nil {
		return database.Balance{}, err
	}

	return bal, nil
}

// transaction returns the transaction with the hash. The node answers an
// unknown hash with an empty document.
func (c *client) transaction(hash string) (database.Tx, error) {
	var tx database.Tx
	if err := c.get("/transactions/"+hash, &tx); err != nil {
		return database.Tx{}, err
	}

	if tx.TransactionHash == "" {
		return database.Tx{}, fmt.Errorf("transaction %s not found", hash)
	}

	return tx, nil
}

// submit posts the signed transaction and returns the node's answer.
func (c *client) submit(tx database.Tx) (string, error) {
	body := struct {
		Transaction database.Tx `json:"transaction"`
	}{
		Transaction: tx,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := c.hc.Post(c.url+"/transactions", "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	msg, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return string(msg), nil
}

func (c *client) get(path string, v any) error {
	resp, err := c.hc.Get(c.url + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
