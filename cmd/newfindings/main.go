// newfindings reports Dome9 compliance findings that appeared since a
// baseline day.
package main

func main() {
	Execute()
}
