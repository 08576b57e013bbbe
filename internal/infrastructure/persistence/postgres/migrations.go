package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROGRESS STORE
// Tables owned by the progress engine.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Lesson progress: one row per (student, lesson), never deleted
CREATE TABLE IF NOT EXISTS lesson_progress (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    lesson_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'not_started',
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,
    quiz_score DOUBLE PRECISION,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_lesson_progress UNIQUE (student_id, lesson_id),
    CONSTRAINT valid_lp_status CHECK (status IN ('not_started', 'in_progress', 'completed')),
    CONSTRAINT valid_lp_time CHECK (time_spent_minutes >= 0),
    CONSTRAINT valid_lp_quiz CHECK (quiz_score IS NULL OR (quiz_score >= 0 AND quiz_score <= 100)),
    CONSTRAINT lp_completed_at CHECK ((status = 'completed') = (completed_at IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_lesson_progress_student_course ON lesson_progress(student_id, course_id);

-- Enrollment aggregates
CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    student_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,
    progress_percentage NUMERIC(5,2) NOT NULL DEFAULT 0,
    completed_lessons INTEGER NOT NULL DEFAULT 0,
    total_lessons INTEGER NOT NULL DEFAULT 0,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,
    average_quiz_score DOUBLE PRECISION,
    certificate_issued BOOLEAN NOT NULL DEFAULT FALSE,
    certificate_ref VARCHAR(64),
    certificate_issued_at TIMESTAMP WITH TIME ZONE,
    last_accessed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,

    CONSTRAINT uq_enrollment UNIQUE (student_id, course_id),
    CONSTRAINT valid_percentage CHECK (progress_percentage >= 0 AND progress_percentage <= 100),
    CONSTRAINT completed_means_hundred CHECK ((completed_at IS NOT NULL) = (progress_percentage = 100)),
    CONSTRAINT certificate_needs_completion CHECK (NOT certificate_issued OR completed_at IS NOT NULL)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_certificate_ref ON enrollments(certificate_ref) WHERE certificate_ref IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_enrollments_missing_certificate ON enrollments(completed_at) WHERE completed_at IS NOT NULL AND NOT certificate_issued;
CREATE INDEX IF NOT EXISTS idx_enrollments_active ON enrollments(last_accessed_at DESC) WHERE completed_at IS NULL;

-- Learning streaks: one row per student
CREATE TABLE IF NOT EXISTS learning_streaks (
    student_id VARCHAR(64) PRIMARY KEY,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_credited_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND best_streak >= current_streak)
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MARKETPLACE TABLES
// Owned by the marketplace; created here only when absent so a standalone
// database works for development.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(64) PRIMARY KEY,
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'student',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);

CREATE TABLE IF NOT EXISTS courses (
    id VARCHAR(64) PRIMARY KEY,
    instructor_id VARCHAR(64) NOT NULL REFERENCES users(id),
    title VARCHAR(300) NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_courses_instructor ON courses(instructor_id);

CREATE TABLE IF NOT EXISTS course_modules (
    id VARCHAR(64) PRIMARY KEY,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(64) PRIMARY KEY,
    module_id VARCHAR(64) NOT NULL REFERENCES course_modules(id) ON DELETE CASCADE,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_lessons_module ON lessons(module_id);

CREATE TABLE IF NOT EXISTS course_enrollments (
    student_id VARCHAR(64) NOT NULL,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id),
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS payments (
    id VARCHAR(64) PRIMARY KEY,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id),
    student_id VARCHAR(64) NOT NULL,
    amount NUMERIC(12,2) NOT NULL,
    status VARCHAR(20) NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_payments_completed ON payments(completed_at) WHERE status = 'completed';

CREATE TABLE IF NOT EXISTS reviews (
    id VARCHAR(64) PRIMARY KEY,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id),
    rating INTEGER NOT NULL,

    CONSTRAINT valid_rating CHECK (rating BETWEEN 1 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_reviews_course ON reviews(course_id);
`
