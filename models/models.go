package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User, RefreshToken, PermanentToken, WaitlistEntry from user.go
// - Interview, InterviewSession, InterviewTranscript, InterviewReport, PerformanceScore from interview.go
// - ExamInterview, ExamQuestion from exam.go
// - JobInterview, Round, JobQuestion from job.go
// - UserStats from stats.go

// Database schema overview:
// 1. users - local and Google accounts with profile and resume text
// 2. waitlist_entries - pre-launch signups
// 3. interviews - public and private interviewer personas for the voice flow
// 4. interview_sessions - each voice interview attempt, with face-analysis frames
// 5. interview_transcripts - ordered, turn-by-turn text of the conversation
// 6. interview_reports - final AI-generated analysis and face aggregates
// 7. performance_scores - per-metric scores of a voice session
// 8. exam_interviews - timed written exams, questions stored as a JSON document
// 9. job_interviews - multi-round job interviews, rounds stored as a JSON document
