/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ponyo877/roomchat/client/domain"
)

// echoCmd represents the echo command
var echoCmd = &cobra.Command{
	Use:   "echo <text> <room-id>",
	Short: "Writes one message to a chatroom.",
	Long:  `Opens a stream to the chatroom, sends the given text and disconnects.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		text, roomID := args[0], args[1]

		events := make(chan domain.StreamEvent, 64)
		handle := transport.Open(roomID, events)
		defer handle.Close()

		timeout := time.After(time.Second * 10)
		for connected := false; !connected; {
			select {
			case ev := <-events:
				switch ev.Type {
				case domain.EventOpen:
					connected = true
				case domain.EventError:
					fmt.Fprintf(os.Stderr, "Error connecting to chatroom %s: %v\n", roomID, ev.Error)
					return
				case domain.EventClose:
					fmt.Fprintf(os.Stderr, "Chatroom %s closed the connection\n", roomID)
					return
				}
			case <-timeout:
				fmt.Fprintf(os.Stderr, "Timed out connecting to chatroom %s\n", roomID)
				return
			}
		}

		if err := handle.Send(text); err != nil {
			fmt.Fprintf(os.Stderr, "Error sending message to %s: %v\n", roomID, err)
			return
		}
		logger.Debug().Str("room_id", roomID).Msg("Message sent")
	},
}

func init() {
	rootCmd.AddCommand(echoCmd)
}
