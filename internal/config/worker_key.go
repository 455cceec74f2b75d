package config

type WorkerKeyStruct struct {
	GradeEssaysQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradeEssaysQueue: "grade_essays_queue",
}
