package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/philippseith/wsmanager"
)

var (
	callURL     string
	callTimeout time.Duration
	callListen  time.Duration
)

// callCmd invokes a single hub method and prints its result as JSON
var callCmd = &cobra.Command{
	Use:   "call method [argument...]",
	Short: "Invoke a hub method",
	Long: "Invoke a hub method and print the result as JSON. Arguments are parsed as JSON values, " +
		"arguments which are no valid JSON are sent as strings.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
		defer cancel()
		codec, err := codecByName(protocol)
		if err != nil {
			return err
		}
		conn, err := wsmanager.DialWebSocket(ctx, callURL, codec, callTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to %v: %w", callURL, err)
		}
		client, err := wsmanager.NewClient(conn, wsmanager.WithCodec(codec), wsmanager.Logger(newLogger(), debug))
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		result, err := client.Invoke(ctx, args[0], parseArguments(args[1:])...)
		if err != nil {
			return err
		}
		var value interface{}
		if err = client.UnmarshalResult(result, &value); err != nil {
			return err
		}
		if err = printJSON(cmd, value); err != nil {
			return err
		}
		if callListen > 0 {
			return listenPushes(cmd, client, codec)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().StringVar(&callURL, "url", "ws://localhost:8086/hub", "websocket url of the hub")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "timeout for connecting and invoking")
	callCmd.Flags().DurationVar(&callListen, "listen", 0, "print the invocations pushed by the hub for this duration after the result")
}

func parseArguments(args []string) []interface{} {
	arguments := make([]interface{}, len(args))
	for i, arg := range args {
		var value interface{}
		if err := json.Unmarshal([]byte(arg), &value); err == nil {
			arguments[i] = value
		} else {
			arguments[i] = arg
		}
	}
	return arguments
}

func listenPushes(cmd *cobra.Command, client *wsmanager.Client, codec wsmanager.Codec) error {
	timeout := time.After(callListen)
	for {
		select {
		case push := <-client.Pushes():
			arguments := make([]interface{}, len(push.Arguments))
			for i, argument := range push.Arguments {
				if err := codec.UnmarshalArgument(argument, &arguments[i]); err != nil {
					return err
				}
			}
			if err := printJSON(cmd, map[string]interface{}{"target": push.MethodName, "arguments": arguments}); err != nil {
				return err
			}
		case <-client.Done():
			return client.Err()
		case <-timeout:
			return nil
		}
	}
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
