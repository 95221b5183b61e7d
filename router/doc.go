/*
Package router contains wsmanager.MappableRouter factories for some popular http routers.
(Listed in https://www.alexedwards.net/blog/which-go-router-should-i-use)
The factories can be used to integrate the hub server from github.com/philippseith/wsmanager with the router.
If you don't like to reference router modules you aren't using, just copy the source code
for the factory for your router.
*/
package router
