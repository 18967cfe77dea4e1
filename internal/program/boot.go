package program

// bootSource is the trusted program shown while the BOOT screen is active.
// It skips validation and carries the end-of-boot callback.
const bootSource = `// playbox
var lines = ['PLAYBOX', 'READY.']

function draw () {
  cls(0)
  for (var i = 0; i < lines.length; i++) {
    print(lines[i], 4, 4 + i * 8, 7)
  }
}
`

// Boot returns the fixed boot program.
func Boot() Program {
	return FromFragments(bootSource)
}
