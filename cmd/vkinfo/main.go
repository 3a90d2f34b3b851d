// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command vkinfo prints the physical devices Vulkan reports as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/devblok/vulkan3d/gfx/vkr"
	log "github.com/sirupsen/logrus"
)

var (
	debug  = flag.Bool("debug", false, "Enable validation layers")
	indent = flag.Bool("indent", true, "Indent the output")
)

func main() {
	flag.Parse()

	driver, err := vkr.New(nil, vkr.Config{
		AppName: "vkinfo",
		Debug:   *debug,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer driver.Release()

	devices, err := driver.PhysicalDevices()
	if err != nil {
		log.Fatal(err)
	}

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(devices, "", "  ")
	} else {
		bytes, err = json.Marshal(devices)
	}
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s\n", bytes)
}
