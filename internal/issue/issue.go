// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ToolNotFoundId Id = iota + 1
	NotInstallDirId
	NodeOfflineId
	WorkspaceUnavailableId
	GlobalConfigNeededId
	ProjectConfigNeededId
	ExecutionFailedId
	ConfigLoadFailedId
	InvalidStepConfigId
	AgentServerFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	toolNotFoundIssue = &Issue{
		id: ToolNotFoundId,
		mdMsg: `
# No such tool!

The installation named in the step is not registered for its kind.

## Things you can try:
- List what is registered:
~~~
$ provar-ci tool list
~~~
- Add the installation to the ` + "`installations`, `jdks` or `ants`" + ` list of your config file
- Check the spelling: names are matched exactly`,
	}

	notInstallDirIssue = &Issue{
		id: NotInstallDirId,
		mdMsg: `
# Not a Provar directory!

The installation home does not contain ` + "`ant/ant-provar.jar`" + ` on the execution node.

## Things you can try:
- Check the home on the node itself:
~~~
$ provar-ci tool check /path/to/provar
~~~
- Add a per-node tool location if the node installs Provar elsewhere
- Make sure macros in the home (such as ` + "`$PROVAR_ROOT`" + `) are defined on the node`,
	}

	nodeOfflineIssue = &Issue{
		id: NodeOfflineId,
		mdMsg: `
# Execution node is offline!

The build could not talk to its execution agent.

## Things you can try:
- Check that ` + "`provar-ci agent serve`" + ` is running on the node
- Verify the agent address and that the token variable is set
- Retry the build once the node is reachable`,
	}

	workspaceUnavailableIssue = &Issue{
		id: WorkspaceUnavailableId,
		mdMsg: `
# Workspace is not available!

The build file was not found under the module root and there is no
workspace to search. The agent may be disconnected.

## Things you can try:
- Pass the workspace with ` + "`--workspace`" + ` or in the context file
- Check that the project folder contains ` + "`ANT/build.xml`",
	}

	globalConfigNeededIssue = &Issue{
		id: GlobalConfigNeededId,
		mdMsg: `
# No Provar Automation installation is configured!

Ant could not be launched and no installation is registered, so the
build relied on ` + "`ant`" + ` being on the node's PATH.

## Things you can try:
- Register an installation:
~~~
$ provar-ci config init
~~~
  then add it under ` + "`installations`",
	}

	projectConfigNeededIssue = &Issue{
		id: ProjectConfigNeededId,
		mdMsg: `
# No Provar Automation installation was selected!

Installations are registered but this step did not pick one.

## Things you can try:
- Pass ` + "`--provar-automation-name <name>`" + `
- Run ` + "`provar-ci tool list`" + ` to see the registered names`,
	}

	executionFailedIssue = &Issue{
		id: ExecutionFailedId,
		mdMsg: `
# Command execution failed!

The build tool could not be started or the connection to it was lost.

## Things you can try:
- Run with ` + "`--verbose`" + ` to see the full command line
- Use ` + "`--dry-run`" + ` to print the command without launching it`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the file location:
~~~
$ provar-ci config path
~~~
- Regenerate a default file with ` + "`provar-ci config init --force`",
	}

	invalidStepConfigIssue = &Issue{
		id: InvalidStepConfigId,
		mdMsg: `
# Invalid step configuration!

One of the step options has a value outside its allowed set.

## Allowed values:
- browser: Chrome_Headless, Chrome, Edge, Edge_Legacy, Firefox, Safari
- salesforce metadata cache: Reuse, Refresh, Reload
- results path: Increment, Replace, Fail`,
	}

	agentServerFailedIssue = &Issue{
		id: AgentServerFailedId,
		mdMsg: `
# Agent server failed to start!

## Things you can try:
- Set the token variable named by ` + "`agent.token_env`" + `
- Pick a free address with ` + "`--address`",
	}

	issues = map[Id]*Issue{
		toolNotFoundIssue.Id():         toolNotFoundIssue,
		notInstallDirIssue.Id():        notInstallDirIssue,
		nodeOfflineIssue.Id():          nodeOfflineIssue,
		workspaceUnavailableIssue.Id(): workspaceUnavailableIssue,
		globalConfigNeededIssue.Id():   globalConfigNeededIssue,
		projectConfigNeededIssue.Id():  projectConfigNeededIssue,
		executionFailedIssue.Id():      executionFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		invalidStepConfigIssue.Id():    invalidStepConfigIssue,
		agentServerFailedIssue.Id():    agentServerFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
