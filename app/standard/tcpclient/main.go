package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
)

// tcpclient connects through the kernel stack to a peer served by tuntcp and
// writes every line read from stdin to it.
func main() {
	addr := flag.String("addr", "10.0.0.1:80", "address routed through the tun device")
	flag.Parse()

	log := logrus.WithFields(logrus.Fields{
		"command": "tcpclient",
	})
	connection, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatal(err)
	}
	defer connection.Close()
	log.Infof("connected %s -> %s", connection.LocalAddr(), connection.RemoteAddr())

	if err := sendMessage(connection); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func sendMessage(connection net.Conn) error {
	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return stdin.Err()
		}
		if _, err := connection.Write(append(stdin.Bytes(), '\n')); err != nil {
			return err
		}
	}
}
