package main

import (
	"fmt"
	"os"
)

func main() {
	token := os.Getenv("GITHUB_TOKEN")
	region, _ := os.LookupEnv("AWS_REGION")
	fmt.Println(token, region)
}
