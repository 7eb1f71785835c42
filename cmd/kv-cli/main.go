package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/tidwall/resp"
)

func main() {
	addr := flag.String("addr", getenv("KV_ADDR", "127.0.0.1:6379"), "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	reader := resp.NewReader(conn)

	if flag.NArg() > 0 {
		if err := sendCommand(conn, flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			os.Exit(1)
		}
		v, _, err := reader.ReadValue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		printValue(v, "")
		return
	}

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s> ", *addr)
		line, err := in.ReadString('\n')
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if strings.EqualFold(args[0], "QUIT") || strings.EqualFold(args[0], "EXIT") {
			return
		}
		if err := sendCommand(conn, args); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
		v, _, err := reader.ReadValue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			return
		}
		printValue(v, "")
	}
}

// sendCommand writes args as an array of bulk strings.
func sendCommand(conn net.Conn, args []string) error {
	vals := make([]resp.Value, len(args))
	for i, a := range args {
		vals[i] = resp.StringValue(a)
	}
	b, err := resp.ArrayValue(vals).MarshalRESP()
	if err != nil {
		return err
	}
	_, err = conn.Write(b)
	return err
}

func printValue(v resp.Value, indent string) {
	if v.IsNull() {
		fmt.Println("(nil)")
		return
	}
	switch v.Type() {
	case resp.Error:
		fmt.Printf("(error) %s\n", v.String())
	case resp.Integer:
		fmt.Printf("(integer) %d\n", v.Integer())
	case resp.BulkString:
		fmt.Printf("%q\n", v.String())
	case resp.Array:
		items := v.Array()
		if len(items) == 0 {
			fmt.Println("(empty array)")
			return
		}
		for i, item := range items {
			if i > 0 {
				fmt.Print(indent)
			}
			fmt.Printf("%d) ", i+1)
			printValue(item, indent+"   ")
		}
	default:
		fmt.Println(v.String())
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
