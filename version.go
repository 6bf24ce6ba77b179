package main

// / The version number of the current megaton release.
const kMegatonVersion = "0.4.0"
