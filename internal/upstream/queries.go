package upstream

const userFields = `
    id
    firstName
    lastName
    email
    phone
    avatarUrl
    bio
    isDeleted
    role
    suspended
    lastNameChangedAt
    moderatorId
    createdAt
    updatedAt`

// upsert по первичному ключу: повторная верификация обновляет профиль, а не падает
const upsertUserMutation = `mutation CreateUser($id: uuid!, $firstName: String!, $lastName: String!, $email: String!, $phone: String!, $role: String!, $moderatorId: uuid) {
  createUser(
    object: {id: $id, firstName: $firstName, lastName: $lastName, email: $email, phone: $phone, role: $role, moderatorId: $moderatorId}
    onConflict: {constraint: users_pkey, updateColumns: [firstName, lastName, email, phone, role]}
  ) {` + userFields + `
  }
}`
