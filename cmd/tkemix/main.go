/*
Copyright © 2023 the TKEmix authors.
This file is part of TKEmix.

TKEmix is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TKEmix is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TKEmix.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command tkemix is a command-line interface for the TKE vertical mixing
// closure.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/tkemix/tkeutil"
)

func main() {
	if len(os.Args) == 1 { // Without a command, start the GUI server.
		tkeutil.StartWebServer()
		return
	}
	if err := tkeutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
