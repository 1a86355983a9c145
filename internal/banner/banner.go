package banner

import "fmt"

const Version = "1.0.0"

func Print() {
	banner := `
    __    _ ____     __
   / /   (_) __/__  / /_  ____  _  __
  / /   / / /_/ _ \/ __ \/ __ \| |/_/
 / /___/ / __/  __/ /_/ / /_/ />  <
/_____/_/_/  \___/_.___/\____/_/|_|
          v%s - Alarm Engine
    `
	fmt.Printf(banner, Version)
	fmt.Println("\n------------------------------------------------")
}
