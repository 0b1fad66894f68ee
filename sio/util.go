/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/Comcast/oscroute/osc"
)

// JS renders its argument as JSON or as '%#v'.  Packets are rendered
// as PacketMap does.
func JS(x interface{}) string {
	x = packetable(x)
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// JSON is JS with indentation.
func JSON(x interface{}) string {
	x = packetable(x)
	if x == nil {
		return "null"
	}
	js, err := json.MarshalIndent(&x, "", "  ")
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

// JShort is JS truncated for a log line.
func JShort(x interface{}) string {
	const limit = 70
	js := JS(x)
	if limit < len(js) {
		js = js[:limit] + "..."
	}
	return js
}

// PacketJS renders a packet as JSON in the form that ParsePacket
// reads.
func PacketJS(p osc.Packet) string {
	return JS(p)
}

// packetable replaces packets, and slices of them, with their
// PacketMap forms.
func packetable(x interface{}) interface{} {
	switch vv := x.(type) {
	case osc.Packet:
		return PacketMap(vv)
	case []osc.Packet:
		acc := make([]interface{}, len(vv))
		for i, p := range vv {
			acc[i] = PacketMap(p)
		}
		return acc
	}
	return x
}

var shell = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand expands shell commands delimited by '<<' and '>>'.  Use
// at your own risk, of course!
func ShellExpand(msg string) (string, error) {
	literals := shell.Split(msg, -1)
	ss := shell.FindAllStringSubmatch(msg, -1)
	acc := literals[0]
	for i, s := range ss {
		var sh = s[1]
		cmd := exec.Command("bash", "-c", sh)
		var out bytes.Buffer
		cmd.Stdout = &out
		err := cmd.Run()
		if err != nil {
			return "", fmt.Errorf("shell error %s on %s", err, sh)
		}
		got := out.String()
		acc += got
		acc += literals[i+1]
	}
	return acc, nil
}
