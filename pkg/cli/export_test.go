package cli

var WriteReport = writeReport

type Report = report

var StartFeed = startFeed
