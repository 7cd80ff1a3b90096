package schema

// defaultBook is the built-in registry snapshot. Deployments that need a
// different vocabulary ship their own YAML and point REGISTRY_PATH at it;
// the built-in book keeps a single-binary deployment serviceable.
const defaultBook = `
version: "1.0.0"
entries:
  - action: CREATE
    target: USER_PROFILE
    description: Provision a user profile inside an organization.
    payload_schema:
      type: object
      properties:
        email: {type: string}
        name: {type: string}
        role: {type: string}
      required: [email, name]
    examples:
      - {email: "dana@example.com", name: "Dana Reyes", role: "staff"}
  - action: READ
    target: USER_PROFILE
    description: Fetch one or more user profiles.
    payload_schema:
      type: object
      properties:
        userId: {type: string}
  - action: UPDATE
    target: USER_PROFILE
    description: Modify fields on an existing user profile.
    payload_schema:
      type: object
      properties:
        userId: {type: string}
        email: {type: string}
        name: {type: string}
      required: [userId]
  - action: DELETE
    target: USER_PROFILE
    description: Remove a user profile.
    payload_schema:
      type: object
      properties:
        userId: {type: string}
      required: [userId]
    examples:
      - {userId: "usr-41"}
  - action: CREATE
    target: PROJECT_TASK
    description: Create a project task.
    payload_schema:
      type: object
      properties:
        taskName: {type: string}
        assignee: {type: string}
        dueDate: {type: string}
      required: [taskName]
  - action: READ
    target: PROJECT_TASK
    description: List or fetch project tasks.
    payload_schema:
      type: object
      properties:
        taskName: {type: string}
        status: {type: string}
  - action: UPDATE
    target: PROJECT_TASK
    description: Update a project task.
    payload_schema:
      type: object
      properties:
        taskName: {type: string}
        status: {type: string}
        assignee: {type: string}
      required: [taskName]
  - action: DELETE
    target: PROJECT_TASK
    description: Delete a project task by name.
    payload_schema:
      type: object
      properties:
        taskName: {type: string}
      required: [taskName]
    examples:
      - {taskName: "Deploy"}
  - action: CREATE
    target: BID_PROPOSAL
    description: Draft a bid proposal for an opportunity.
    payload_schema:
      type: object
      properties:
        opportunityId: {type: string}
        title: {type: string}
        amount: {type: number}
      required: [opportunityId]
    examples:
      - {opportunityId: "opp-1", title: "Runway resurfacing"}
      - {opportunityId: "opp-2", title: "Hangar retrofit", amount: 125000}
  - action: READ
    target: BID_PROPOSAL
    description: Fetch bid proposals.
    payload_schema:
      type: object
      properties:
        bidId: {type: string}
        status: {type: string}
  - action: ANALYZE
    target: BID_PROPOSAL
    description: Score an opportunity for bid viability.
    payload_schema:
      type: object
      properties:
        opportunityId: {type: string}
      required: [opportunityId]
  - action: CREATE
    target: DOCUMENT
    description: Store a document.
    payload_schema:
      type: object
      properties:
        title: {type: string}
        contentRef: {type: string}
      required: [title]
  - action: READ
    target: DOCUMENT
    description: Fetch documents.
    payload_schema:
      type: object
      properties:
        documentId: {type: string}
  - action: DELETE
    target: DOCUMENT
    description: Remove a document.
    payload_schema:
      type: object
      properties:
        documentId: {type: string}
      required: [documentId]
    examples:
      - {documentId: "doc-7"}
  - action: CREATE
    target: EMPLOYEE
    description: Onboard an employee record.
    payload_schema:
      type: object
      properties:
        name: {type: string}
        email: {type: string}
        department: {type: string}
      required: [name]
    examples:
      - {name: "Sam Okafor", email: "sam@example.com", department: "field-ops"}
  - action: READ
    target: EMPLOYEE
    description: List employees in an organization.
    payload_schema:
      type: object
      properties:
        employeeId: {type: string}
        department: {type: string}
  - action: UPDATE
    target: EMPLOYEE
    description: Update an employee record.
    payload_schema:
      type: object
      properties:
        employeeId: {type: string}
        department: {type: string}
        status: {type: string}
      required: [employeeId]
  - action: DELETE
    target: EMPLOYEE
    description: Offboard an employee record.
    payload_schema:
      type: object
      properties:
        employeeId: {type: string}
      required: [employeeId]
    examples:
      - {employeeId: "emp-19"}
  - action: CREATE
    target: TIME_ENTRY
    description: Record a time entry against a task.
    payload_schema:
      type: object
      properties:
        employeeId: {type: string}
        taskName: {type: string}
        hours: {type: number}
      required: [employeeId, hours]
    examples:
      - {employeeId: "emp-19", taskName: "Deploy", hours: 7.5}
  - action: READ
    target: TIME_ENTRY
    description: Fetch time entries.
    payload_schema:
      type: object
      properties:
        employeeId: {type: string}
        periodStart: {type: string}
        periodEnd: {type: string}
  - action: DELETE
    target: TIME_ENTRY
    description: Remove a time entry.
    payload_schema:
      type: object
      properties:
        entryId: {type: string}
      required: [entryId]
  - action: READ
    target: ANALYTICS_REPORT
    description: Fetch a generated analytics report.
    payload_schema:
      type: object
      properties:
        reportId: {type: string}
  - action: ANALYZE
    target: ANALYTICS_REPORT
    description: Build an analytics report over a metric window.
    payload_schema:
      type: object
      properties:
        metric: {type: string}
        periodStart: {type: string}
        periodEnd: {type: string}
      required: [metric]
  - action: PREDICT
    target: ANALYTICS_REPORT
    description: Project a metric forward from historical data.
    payload_schema:
      type: object
      properties:
        metric: {type: string}
        horizonDays: {type: number}
      required: [metric]
  - action: CREATE
    target: AI_AGENT
    description: Register an autonomous agent.
    payload_schema:
      type: object
      properties:
        name: {type: string}
        kind: {type: string}
        configuration: {type: object}
      required: [name, kind]
  - action: READ
    target: AI_AGENT
    description: List registered agents.
    payload_schema:
      type: object
      properties:
        agentId: {type: string}
        status: {type: string}
  - action: UPDATE
    target: AI_AGENT
    description: Reconfigure or pause an agent.
    payload_schema:
      type: object
      properties:
        agentId: {type: string}
        status: {type: string}
        configuration: {type: object}
      required: [agentId]
  - action: DELETE
    target: AI_AGENT
    description: Deactivate an agent.
    payload_schema:
      type: object
      properties:
        agentId: {type: string}
      required: [agentId]
  - action: READ
    target: SYSTEM_CONFIG
    description: Read a configuration value.
    payload_schema:
      type: object
      properties:
        key: {type: string}
  - action: UPDATE
    target: SYSTEM_CONFIG
    description: Change a configuration value.
    payload_schema:
      type: object
      properties:
        key: {type: string}
        value: {}
      required: [key]
    examples:
      - {key: "maintenance_window", value: "02:00-04:00"}
  - action: VALIDATE
    target: SYSTEM_CONFIG
    description: Check configuration consistency without changing it.
    payload_schema:
      type: object
      properties:
        key: {type: string}
  - action: OPTIMIZE
    target: SYSTEM_CONFIG
    description: Tune configuration values toward a stated objective.
    payload_schema:
      type: object
      properties:
        objective: {type: string}
      required: [objective]
`

// Default returns the built-in registry snapshot.
func Default() (*Snapshot, error) {
	return Load([]byte(defaultBook))
}
