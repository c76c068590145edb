/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
streamnode-cli is an interactive operator console for one streamnode node:
connect, issue ping/append/poll/create/delete/streams/nodestate/metadata
commands, and inspect the cluster's replicated state.

Usage:

	streamnode-cli --address 127.0.0.1:8101
*/
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"streamnode/internal/cliclient"
	sysErrors "streamnode/internal/errors"
	"streamnode/internal/wire"
	"streamnode/pkg/cli"
)

const version = "1.0.0"

func main() {
	address := flag.String("address", "127.0.0.1:8101", "Address of the streamnode node's public listener")
	flag.Parse()

	fmt.Println()
	fmt.Printf("  %sstreamnode-cli%s %sv%s%s\n", cli.Bold+cli.Green, cli.Reset, cli.Dim, version, cli.Reset)
	fmt.Printf("  %sinteractive console for a streamnode cluster%s\n\n", cli.Dim, cli.Reset)

	client, err := cliclient.Dial(*address)
	if err != nil {
		cli.ErrConnectionFailed(*address, err).Print()
		return
	}
	defer client.Close()
	cli.PrintSuccess("Connected to %s", *address)

	rl, err := readline.New("streamnode> ")
	if err != nil {
		cli.PrintError("failed to start console: %v", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cli.PrintError("%v", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		dispatch(client, line)
	}
}

func dispatch(client *cliclient.Client, line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	var err error
	switch cmd {
	case "help":
		printHelp()
	case "ping":
		err = withSpinner("pinging node", client.Ping)
		if err == nil {
			cli.PrintSuccess("pong")
		}
	case "append":
		err = runAppend(client, args)
	case "poll":
		err = runPoll(client, args)
	case "create":
		err = runCreate(client, args)
	case "delete":
		err = runDelete(client, args)
	case "streams":
		err = runStreams(client)
	case "nodestate":
		err = runNodeState(client)
	case "metadata":
		err = runMetadata(client)
	default:
		cli.NewCLIError(fmt.Sprintf("unknown command: %s", cmd)).
			WithSuggestion("type 'help' for a list of commands").Print()
		return
	}

	if err != nil {
		reportError(cmd, err)
	}
}

// reportError renders a command failure, pulling the wire status code back
// out of the error when cliclient.Client.Send wrapped one.
func reportError(cmd string, err error) {
	var sysErr *sysErrors.SystemError
	if errors.As(err, &sysErr) {
		cli.ErrClusterRejected(cmd, uint32(sysErr.Code)).Print()
		return
	}
	cli.PrintError("%v", err)
}

// withSpinner animates message while fn runs a blocking round trip to the
// node, clearing the spinner line before fn's own result is printed.
func withSpinner(message string, fn func() error) error {
	spinner := cli.NewSpinner(message)
	spinner.Start()
	defer spinner.Stop()
	return fn()
}

func runAppend(client *cliclient.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: append <stream_id> <msg1,msg2,...>")
	}
	streamID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid stream id %q: %w", args[0], err)
	}

	parts := strings.Split(args[1], ",")
	messages := make([]wire.AppendableMessage, 0, len(parts))
	for _, p := range parts {
		messages = append(messages, wire.AppendableMessage{ID: 0, Payload: []byte(p)})
	}

	var resp wire.AppendMessagesResponse
	if err := withSpinner("appending messages", func() error {
		var sendErr error
		resp, sendErr = client.AppendMessages(streamID, messages)
		return sendErr
	}); err != nil {
		return err
	}
	cli.PrintSuccess("appended %d message(s), offsets [%d, %d]", len(messages), resp.FirstOffset, resp.LastOffset)
	return nil
}

func runPoll(client *cliclient.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: poll <stream_id> <offset> <count>")
	}
	streamID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid stream id %q: %w", args[0], err)
	}
	offset, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", args[1], err)
	}
	count, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", args[2], err)
	}

	var resp wire.PollMessagesResponse
	if err := withSpinner("polling messages", func() error {
		var pollErr error
		resp, pollErr = client.PollMessages(streamID, offset, count)
		return pollErr
	}); err != nil {
		return err
	}

	table := cli.NewTable("Offset", "ID", "Payload")
	for _, m := range resp.Messages {
		table.AddRow(strconv.FormatUint(m.Offset, 10), strconv.FormatUint(m.ID, 10), string(m.Payload))
	}
	table.Print()
	return nil
}

func runCreate(client *cliclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: create <stream_id> [name]")
	}
	streamID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid stream id %q: %w", args[0], err)
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	if err := withSpinner("creating stream", func() error {
		return client.CreateStream(streamID, name)
	}); err != nil {
		return err
	}
	cli.PrintSuccess("created stream %d", streamID)
	return nil
}

func runDelete(client *cliclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: delete <stream_id>")
	}
	streamID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid stream id %q: %w", args[0], err)
	}
	if err := withSpinner("deleting stream", func() error {
		return client.DeleteStream(streamID)
	}); err != nil {
		return err
	}
	cli.PrintSuccess("deleted stream %d", streamID)
	return nil
}

func runStreams(client *cliclient.Client) error {
	var resp wire.GetStreamsResponse
	if err := withSpinner("fetching streams", func() error {
		var fetchErr error
		resp, fetchErr = client.GetStreams()
		return fetchErr
	}); err != nil {
		return err
	}
	table := cli.NewTable("Stream ID", "Offset")
	for _, s := range resp.Streams {
		table.AddRow(strconv.FormatUint(s.ID, 10), strconv.FormatUint(s.Offset, 10))
	}
	table.Print()
	return nil
}

func runNodeState(client *cliclient.Client) error {
	var resp wire.GetNodeStateResponse
	if err := withSpinner("fetching node state", func() error {
		var fetchErr error
		resp, fetchErr = client.GetNodeState()
		return fetchErr
	}); err != nil {
		return err
	}
	cli.KeyValue("Node ID", strconv.FormatUint(resp.State.ID, 10), 16)
	cli.KeyValue("Address", resp.State.Address, 16)
	cli.KeyValue("Term", strconv.FormatUint(resp.State.Term, 10), 16)
	cli.KeyValue("Commit Index", strconv.FormatUint(resp.State.CommitIndex, 10), 16)
	cli.KeyValue("Last Applied", strconv.FormatUint(resp.State.LastApplied, 10), 16)
	return nil
}

func runMetadata(client *cliclient.Client) error {
	var resp wire.GetMetadataResponse
	if err := withSpinner("fetching cluster metadata", func() error {
		var fetchErr error
		resp, fetchErr = client.GetMetadata()
		return fetchErr
	}); err != nil {
		return err
	}

	nodes := cli.NewTable("Node ID", "Name", "Address")
	for _, n := range resp.Metadata.Nodes {
		nodes.AddRow(strconv.FormatUint(n.ID, 10), n.Name, n.Address)
	}
	nodes.Print()

	streams := cli.NewTable("Stream ID", "Leader ID", "Name")
	for _, s := range resp.Metadata.Streams {
		streams.AddRow(strconv.FormatUint(s.ID, 10), strconv.FormatUint(s.LeaderID, 10), s.Name)
	}
	streams.Print()
	return nil
}

func printHelp() {
	fmt.Printf("\n%s\n", cli.Highlight("COMMANDS:"))
	fmt.Println("  ping                               check connectivity")
	fmt.Println("  append <stream_id> <m1,m2,...>      append messages to a stream")
	fmt.Println("  poll <stream_id> <offset> <count>   read messages from a stream")
	fmt.Println("  create <stream_id> [name]           create a stream")
	fmt.Println("  delete <stream_id>                  delete a stream")
	fmt.Println("  streams                             list known streams")
	fmt.Println("  nodestate                           show this node's election state")
	fmt.Println("  metadata                            show the cluster's node/stream catalog")
	fmt.Println("  exit, quit                           leave the console")
	fmt.Println()
}
