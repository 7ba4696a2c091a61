// Copyright 2024 tobyzxj
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package obslog holds the process-wide logger every other package
// reaches into. It wraps a beego/logs.BeeLogger the way the reference
// coap package does, so a host can swap the sink (console, file,
// syslog) without touching dispatcher or transport code.
package obslog

import (
	"github.com/astaxie/beego/logs"
)

// L is the shared logger. It defaults to a buffered console logger and
// can be replaced wholesale with SetLogger before Dispatcher.Run starts.
var L *logs.BeeLogger

func init() {
	L = logs.NewLogger(10000)
	L.SetLogger(logs.AdapterConsole, `{"level":7}`)
	L.EnableFuncCallDepth(true)
	L.SetLogFuncCallDepth(3)
}

// SetLogger replaces the shared logger wholesale.
func SetLogger(l *logs.BeeLogger) {
	if l != nil {
		L = l
	}
}
