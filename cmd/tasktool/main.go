// tasktool 在 JSON 与队列中的通知任务字节之间互相转换，方便排查 Kafka 里的消息
package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"doc-tracker/internal/notify"

	"google.golang.org/protobuf/encoding/protojson"
	pbproto "google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func main() {
	mode := flag.String("mode", "decode", "Mode: 'encode' or 'decode'")
	inputFormat := flag.String("in", "hex", "Input format for decode: 'hex' or 'base64'")
	outputFormat := flag.String("out", "hex", "Output format for encode: 'hex' or 'base64'")
	raw := flag.Bool("raw", false, "Decode: print the protobuf Struct as-is instead of a task")
	flag.Parse()

	inputData, err := io.ReadAll(os.Stdin)
	if err != nil {
		fail("Error reading stdin: %v", err)
	}
	input := strings.TrimSpace(string(inputData))

	switch *mode {
	case "encode":
		encode(input, *outputFormat)
	case "decode":
		decode(input, *inputFormat, *raw)
	default:
		fail("Invalid mode: %s. Use 'encode' or 'decode'.", *mode)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// JSON 任务编码为队列里的字节
func encode(jsonInput, outputFormat string) {
	var task notify.Task
	if err := json.Unmarshal([]byte(jsonInput), &task); err != nil {
		fail("Error unmarshaling JSON to task: %v\nInput: %s", err, jsonInput)
	}
	data, err := notify.EncodeTask(&task)
	if err != nil {
		fail("Error encoding task: %v", err)
	}

	switch outputFormat {
	case "hex":
		fmt.Println(hex.EncodeToString(data))
	case "base64":
		fmt.Println(base64.StdEncoding.EncodeToString(data))
	default:
		fail("Invalid output format: %s. Use 'hex' or 'base64'.", outputFormat)
	}
}

func decode(input, inputFormat string, raw bool) {
	var data []byte
	var err error
	switch inputFormat {
	case "hex":
		data, err = hex.DecodeString(input)
	case "base64":
		data, err = base64.StdEncoding.DecodeString(input)
	default:
		fail("Invalid input format: %s. Use 'hex' or 'base64'.", inputFormat)
	}
	if err != nil {
		fail("Error decoding input string (%s): %v", inputFormat, err)
	}

	if raw {
		var s structpb.Struct
		if err := pbproto.Unmarshal(data, &s); err != nil {
			fail("Error unmarshaling Protobuf: %v", err)
		}
		out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(&s)
		if err != nil {
			fail("Error marshaling to JSON: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	task, err := notify.DecodeTask(data)
	if err != nil {
		fail("Error decoding task: %v", err)
	}
	out, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		fail("Error marshaling to JSON: %v", err)
	}
	fmt.Println(string(out))
}
